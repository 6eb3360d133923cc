package layout

import (
	"errors"
	"testing"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
)

func newTestDevice(inverted bool) *Device {
	return NewDevice(4, "W4", DeviceSwitch, hardware.Binding{Control: 1, Protocol: "dcc", Address: 12}, inverted)
}

func TestDeviceSoftLockOverride(t *testing.T) {
	tests := []struct {
		name     string
		hard     bool
		loco     LocoID
		priority uint8
		want     bool
	}{
		{"higher priority takes soft lock", false, 2, 5, true},
		{"equal priority does not", false, 2, 3, false},
		{"lower priority does not", false, 2, 1, false},
		{"owner cannot re-reserve", false, 1, 9, false},
		{"hard lock never yields", true, 2, 255, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(false)
			if !d.Reserve(1, 3) || !d.Lock(1, tt.hard) {
				t.Fatal("initial reserve/lock failed")
			}
			if got := d.Reserve(tt.loco, tt.priority); got != tt.want {
				t.Errorf("Reserve() = %v, want %v", got, tt.want)
			}
			if tt.want && d.Snapshot().Owner != tt.loco {
				t.Errorf("Owner = %d, want %d", d.Snapshot().Owner, tt.loco)
			}
		})
	}
}

func TestDeviceReservedNotOverridable(t *testing.T) {
	d := newTestDevice(false)
	d.Reserve(1, 0)
	if d.Reserve(2, 255) {
		t.Error("Reserve() over a plain reservation should fail")
	}
}

func TestDeviceLockRequiresReservation(t *testing.T) {
	d := newTestDevice(false)
	if d.Lock(1, false) {
		t.Error("Lock() without reservation should fail")
	}
	d.Reserve(1, 0)
	if d.Lock(2, false) {
		t.Error("Lock() by another loco should fail")
	}
	if !d.Lock(1, true) {
		t.Fatal("Lock() by owner should succeed")
	}
	if got := d.Snapshot().Lock; got != DeviceHardLocked {
		t.Errorf("Lock = %v, want hard_locked", got)
	}
}

func TestDeviceHardLockedByOther(t *testing.T) {
	d := newTestDevice(false)
	d.Reserve(1, 0)
	d.Lock(1, true)

	if d.HardLockedByOther(1) {
		t.Error("HardLockedByOther(owner) = true")
	}
	if !d.HardLockedByOther(2) {
		t.Error("HardLockedByOther(other) = false")
	}
}

func TestDeviceReleaseIdempotent(t *testing.T) {
	d := newTestDevice(false)
	d.Reserve(1, 0)
	if d.Release(2) {
		t.Error("Release() by another loco should be a no-op")
	}
	if !d.Release(1) {
		t.Error("Release() by owner should succeed")
	}
	if d.Release(1) {
		t.Error("second Release() should be a no-op")
	}
}

func TestDeviceSetState(t *testing.T) {
	d := newTestDevice(true)

	if _, ok := d.setState(1, hardware.DeviceStateOn); ok {
		t.Error("setState() without holding the device should fail")
	}
	d.Reserve(1, 0)
	d.Lock(1, false)
	wire, ok := d.setState(1, hardware.DeviceStateOn)
	if !ok {
		t.Fatal("setState() by holder failed")
	}
	if wire != hardware.DeviceStateOff {
		t.Errorf("wire state = %d, want inverted off", wire)
	}
	if d.State() != hardware.DeviceStateOn {
		t.Errorf("State() = %d, want on", d.State())
	}
}

func TestDeviceManualState(t *testing.T) {
	d := newTestDevice(false)
	if _, err := d.setManualState(hardware.DeviceStateOn); err != nil {
		t.Fatalf("setManualState() on free device error = %v", err)
	}
	d.Reserve(1, 0)
	_, err := d.setManualState(hardware.DeviceStateOff)
	if !errors.Is(err, ErrDeviceLocked) {
		t.Errorf("setManualState() on held device error = %v, want ErrDeviceLocked", err)
	}
}

func TestDeviceSerializeRoundTrip(t *testing.T) {
	d := NewDevice(9, "Signal=home", DeviceSignal, hardware.Binding{Control: 2, Protocol: "mm", Address: 300}, true)
	d.setManualState(hardware.DeviceStateOn)

	got, err := DeserializeDevice(d.Serialize())
	if err != nil {
		t.Fatalf("DeserializeDevice() error = %v", err)
	}
	if got.Snapshot() != d.Snapshot() {
		t.Errorf("round trip = %+v, want %+v", got.Snapshot(), d.Snapshot())
	}

	held := NewDevice(4, "W4", DeviceSwitch, hardware.Binding{Control: 1, Protocol: "dcc", Address: 4}, false)
	if !held.Reserve(7, 3) {
		t.Fatal("Reserve() = false")
	}
	if !held.Lock(7, true) {
		t.Fatal("Lock() = false")
	}
	got, err = DeserializeDevice(held.Serialize())
	if err != nil {
		t.Fatalf("DeserializeDevice() error = %v", err)
	}
	snap := got.Snapshot()
	if snap.Lock != DeviceHardLocked || snap.Owner != 7 || snap.Priority != 3 {
		t.Errorf("lock = %v owner = %d priority = %d, want hard_locked by 7 at 3", snap.Lock, snap.Owner, snap.Priority)
	}
	if !got.HardLockedByOther(8) {
		t.Error("HardLockedByOther(8) = false after round trip")
	}
}

func TestParseDeviceKind(t *testing.T) {
	tests := []struct {
		in      string
		want    DeviceKind
		wantErr bool
	}{
		{"", DeviceSwitch, false},
		{"Signal", DeviceSignal, false},
		{"accessory", DeviceAccessory, false},
		{"turntable", DeviceSwitch, true},
	}
	for _, tt := range tests {
		got, err := ParseDeviceKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDeviceKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseDeviceKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
