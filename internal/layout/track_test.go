package layout

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
)

func TestTrackReserveLockRelease(t *testing.T) {
	tr := NewTrack(1, "Platform 1", 1200)

	if tr.Lock(7) {
		t.Fatal("Lock() on free track should fail")
	}
	if !tr.Reserve(7) {
		t.Fatal("Reserve() on free track should succeed")
	}
	if tr.Reserve(7) {
		t.Error("Reserve() by the same loco should fail")
	}
	if tr.Reserve(8) {
		t.Error("Reserve() by another loco should fail")
	}
	if tr.Lock(8) {
		t.Error("Lock() by another loco should fail")
	}
	if !tr.Lock(7) {
		t.Fatal("Lock() by owner should succeed")
	}
	if got := tr.Snapshot().State; got != LockLocked {
		t.Errorf("State = %v, want locked", got)
	}
	if tr.Release(8) {
		t.Error("Release() by another loco should be a no-op")
	}
	if !tr.Release(7) {
		t.Fatal("Release() by owner should succeed")
	}
	if tr.Release(7) {
		t.Error("second Release() should be a no-op")
	}
	if got := tr.Owner(); got != LocoNone {
		t.Errorf("Owner() = %d, want none", got)
	}
}

func TestTrackReserveNoLoco(t *testing.T) {
	tr := NewTrack(1, "t", 0)
	if tr.Reserve(LocoNone) {
		t.Error("Reserve(LocoNone) should fail")
	}
}

func TestTrackBlocked(t *testing.T) {
	tr := NewTrack(1, "t", 0)
	tr.SetBlocked(true)
	if tr.Reserve(1) {
		t.Error("Reserve() on blocked track should fail")
	}
	tr.SetBlocked(false)
	if !tr.Reserve(1) {
		t.Error("Reserve() after unblock should succeed")
	}
}

func TestTrackBlockKeepsOccupant(t *testing.T) {
	tr := NewTrack(1, "t", 0)
	if !tr.Place(3) {
		t.Fatal("Place() failed")
	}
	tr.SetBlocked(true)
	if got := tr.Owner(); got != 3 {
		t.Errorf("Owner() = %d, want 3", got)
	}
}

func TestTrackPlace(t *testing.T) {
	tr := NewTrack(1, "t", 0)
	if !tr.Place(3) {
		t.Fatal("Place() on free track should succeed")
	}
	if !tr.Place(3) {
		t.Error("Place() by the occupant should succeed")
	}
	if tr.Place(4) {
		t.Error("Place() on occupied track should fail")
	}
	if got := tr.Snapshot().State; got != LockLocked {
		t.Errorf("State = %v, want locked", got)
	}
}

func TestTrackConcurrentReserve(t *testing.T) {
	tr := NewTrack(1, "t", 0)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 1; i <= 32; i++ {
		wg.Add(1)
		go func(loco LocoID) {
			defer wg.Done()
			if tr.Reserve(loco) {
				wins.Add(1)
			}
		}(LocoID(i))
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("successful reservations = %d, want 1", got)
	}
}

func TestTrackSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Track)
	}{
		{"free", func(*Track) {}},
		{"reserved", func(tr *Track) { tr.Reserve(5) }},
		{"locked", func(tr *Track) { tr.Reserve(5); tr.Lock(5) }},
		{"blocked facing left", func(tr *Track) {
			tr.Place(2)
			tr.SetBlocked(true)
			tr.SetLocoDirection(hardware.OrientationLeft)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTrack(11, "Yard; road=2", 900)
			tr.SetLocoDirection(hardware.OrientationRight)
			tt.setup(tr)

			got, err := DeserializeTrack(tr.Serialize())
			if err != nil {
				t.Fatalf("DeserializeTrack() error = %v", err)
			}
			if got.Snapshot() != tr.Snapshot() {
				t.Errorf("round trip = %+v, want %+v", got.Snapshot(), tr.Snapshot())
			}
		})
	}
}

func TestDeserializeTrackInvalid(t *testing.T) {
	dev := NewDevice(1, "d", DeviceSwitch, hardware.Binding{}, false)
	if _, err := DeserializeTrack(dev.Serialize()); err == nil {
		t.Error("DeserializeTrack() of a device record should fail")
	}
}
