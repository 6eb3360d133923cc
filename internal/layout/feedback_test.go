package layout

import "testing"

func TestFeedbackSetRaw(t *testing.T) {
	tests := []struct {
		name         string
		inverted     bool
		raw          bool
		wantOccupied bool
	}{
		{"plain occupied", false, true, true},
		{"plain free", false, false, false},
		{"inverted occupied", true, false, true},
		{"inverted free", true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFeedback(1, "f", 1, 3, tt.inverted)
			occupied, _ := f.setRaw(tt.raw)
			if occupied != tt.wantOccupied {
				t.Errorf("setRaw(%v) occupied = %v, want %v", tt.raw, occupied, tt.wantOccupied)
			}
		})
	}
}

func TestFeedbackChangeDetection(t *testing.T) {
	f := NewFeedback(1, "f", 1, 3, false)
	if _, changed := f.setRaw(false); changed {
		t.Error("free -> free reported a change")
	}
	if _, changed := f.setRaw(true); !changed {
		t.Error("free -> occupied not reported")
	}
	if _, changed := f.setRaw(true); changed {
		t.Error("occupied -> occupied reported a change")
	}
}

func TestFeedbackFreeClearsLoco(t *testing.T) {
	f := NewFeedback(1, "f", 1, 3, false)
	f.setRaw(true)
	f.setLoco(4)
	if got := f.Snapshot().Loco; got != 4 {
		t.Fatalf("Loco = %d, want 4", got)
	}
	f.setRaw(false)
	if got := f.Snapshot().Loco; got != LocoNone {
		t.Errorf("Loco after free = %d, want none", got)
	}
}

func TestFeedbackSerializeRoundTrip(t *testing.T) {
	f := NewFeedback(21, "Entry S1", 2, 17, true)
	got, err := DeserializeFeedback(f.Serialize())
	if err != nil {
		t.Fatalf("DeserializeFeedback() error = %v", err)
	}
	if got.Snapshot() != f.Snapshot() {
		t.Errorf("round trip = %+v, want %+v", got.Snapshot(), f.Snapshot())
	}
}
