package hardware

import (
	"errors"
	"testing"
	"time"
)

func newTestHandler(t *testing.T) (*Handler, *Virtual, *Virtual) {
	t.Helper()
	h := NewHandler()
	direct := NewVirtual("direct", nil)
	pulsed := NewVirtual("pulsed", nil)
	if err := h.Register(Control{ID: 2, Name: "pulsed", Backend: pulsed, Pulse: 10 * time.Millisecond}); err != nil {
		t.Fatalf("Register(2) error = %v", err)
	}
	if err := h.Register(Control{ID: 1, Name: "direct", Backend: direct}); err != nil {
		t.Fatalf("Register(1) error = %v", err)
	}
	return h, direct, pulsed
}

func TestHandlerRegister(t *testing.T) {
	h, _, _ := newTestHandler(t)

	if err := h.Register(Control{ID: 1, Backend: NewVirtual("again", nil)}); !errors.Is(err, ErrDuplicateControl) {
		t.Errorf("Register(duplicate) error = %v, want ErrDuplicateControl", err)
	}
	if err := h.Register(Control{ID: 3}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Register(no backend) error = %v, want ErrUnknownBackend", err)
	}

	controls := h.Controls()
	if len(controls) != 2 {
		t.Fatalf("Controls() = %d entries, want 2", len(controls))
	}
	if controls[0].ID != 1 || controls[1].ID != 2 {
		t.Errorf("Controls() order = %d, %d, want 1, 2", controls[0].ID, controls[1].ID)
	}
	if controls[1].PulseMS != 10 {
		t.Errorf("PulseMS = %d, want 10", controls[1].PulseMS)
	}
}

func TestHandlerRoutesByControl(t *testing.T) {
	h, direct, pulsed := newTestHandler(t)
	loco := Binding{Control: 1, Protocol: "dcc", Address: 3}

	h.SetSpeed(loco, 2000)
	h.SetOrientation(loco, OrientationLeft)
	h.SetFunction(loco, 4, true)
	h.SetFunction(loco, MaxFunction+1, true)

	got, ok := direct.Last(CommandLocoSpeed)
	if !ok {
		t.Fatal("no speed command recorded")
	}
	if got.Speed != MaxSpeed {
		t.Errorf("speed = %d, want clamped to %d", got.Speed, MaxSpeed)
	}
	if got.Binding != loco {
		t.Errorf("binding = %v, want %v", got.Binding, loco)
	}
	if len(direct.History()) != 3 {
		t.Errorf("direct history = %d commands, want 3", len(direct.History()))
	}
	if len(pulsed.History()) != 0 {
		t.Errorf("pulsed control received %d commands, want 0", len(pulsed.History()))
	}
}

func TestHandlerUnknownControlDropped(t *testing.T) {
	h, direct, pulsed := newTestHandler(t)

	h.SetSpeed(Binding{Control: 9, Address: 1}, 100)
	h.SetDevice(Binding{Control: 9, Address: 1}, DeviceStateOn)

	if n := len(direct.History()) + len(pulsed.History()); n != 0 {
		t.Errorf("commands recorded = %d, want 0", n)
	}
}

func TestHandlerAccessoryPulse(t *testing.T) {
	h, direct, pulsed := newTestHandler(t)

	h.SetDevice(Binding{Control: 1, Address: 5}, DeviceStateOn)
	if hist := direct.History(); len(hist) != 1 || !hist[0].On {
		t.Errorf("direct accessory history = %+v, want one on command", hist)
	}

	h.SetDevice(Binding{Control: 2, Address: 6}, DeviceStateOff)
	deadline := time.Now().Add(time.Second)
	for len(pulsed.History()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hist := pulsed.History()
	if len(hist) != 2 {
		t.Fatalf("pulsed history = %d commands, want 2", len(hist))
	}
	if !hist[0].On || hist[1].On {
		t.Errorf("pulse sequence = on:%v then on:%v, want true then false", hist[0].On, hist[1].On)
	}
	if hist[1].State != DeviceStateOff {
		t.Errorf("pulse state = %v, want off", hist[1].State)
	}
}

func TestHandlerBoosterBroadcast(t *testing.T) {
	h, direct, pulsed := newTestHandler(t)

	h.Booster(BoosterGo)
	if h.BoosterState() != BoosterGo {
		t.Errorf("BoosterState() = %v, want go", h.BoosterState())
	}
	for name, v := range map[string]*Virtual{"direct": direct, "pulsed": pulsed} {
		got, ok := v.Last(CommandBooster)
		if !ok || got.Booster != BoosterGo {
			t.Errorf("%s booster = %+v (ok=%v), want go", name, got, ok)
		}
	}
}

func TestHandlerClose(t *testing.T) {
	h, _, _ := newTestHandler(t)
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := len(h.Controls()); n != 0 {
		t.Errorf("Controls() after Close = %d, want 0", n)
	}
}

func TestParseValues(t *testing.T) {
	tests := []struct {
		in      string
		want    DeviceState
		wantErr bool
	}{
		{"on", DeviceStateOn, false},
		{"Turnout", DeviceStateOn, false},
		{"red", DeviceStateOff, false},
		{" off ", DeviceStateOff, false},
		{"maybe", DeviceStateOff, true},
	}
	for _, tt := range tests {
		got, err := ParseDeviceState(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDeviceState(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDeviceState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseOrientation("up"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ParseOrientation(up) error = %v, want ErrInvalidValue", err)
	}
	if b, err := ParseBoosterState("GO"); err != nil || b != BoosterGo {
		t.Errorf("ParseBoosterState(GO) = %v, %v", b, err)
	}
	if OrientationLeft.Flip() != OrientationRight || DeviceStateOn.Invert() != DeviceStateOff {
		t.Error("Flip/Invert do not return the opposite value")
	}
}
