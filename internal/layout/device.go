package layout

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/storage"
)

// DeviceKind distinguishes switches, signals and other accessories.
type DeviceKind uint8

// Device kinds.
const (
	DeviceSwitch DeviceKind = iota
	DeviceSignal
	DeviceAccessory
)

// String returns "switch", "signal" or "accessory".
func (k DeviceKind) String() string {
	switch k {
	case DeviceSignal:
		return "signal"
	case DeviceAccessory:
		return "accessory"
	default:
		return "switch"
	}
}

// ParseDeviceKind parses a device kind name.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "switch":
		return DeviceSwitch, nil
	case "signal":
		return DeviceSignal, nil
	case "accessory":
		return DeviceAccessory, nil
	default:
		return DeviceSwitch, fmt.Errorf("%w: device kind %q", ErrInvalidValue, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k DeviceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *DeviceKind) UnmarshalText(text []byte) error {
	parsed, err := ParseDeviceKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DeviceLock is the reservation state of a device.
type DeviceLock uint8

// Device lock states.
const (
	DeviceFree DeviceLock = iota
	DeviceReserved
	DeviceSoftLocked
	DeviceHardLocked
)

// String returns the lock state name.
func (l DeviceLock) String() string {
	switch l {
	case DeviceReserved:
		return "reserved"
	case DeviceSoftLocked:
		return "soft_locked"
	case DeviceHardLocked:
		return "hard_locked"
	default:
		return "free"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l DeviceLock) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func parseDeviceLock(s string) DeviceLock {
	switch s {
	case "reserved":
		return DeviceReserved
	case "soft_locked":
		return DeviceSoftLocked
	case "hard_locked":
		return DeviceHardLocked
	default:
		return DeviceFree
	}
}

// Device is a switch, signal or accessory. A soft lock may be taken over by
// a reservation of higher priority; a hard lock may not.
//
// Thread Safety: All methods are safe for concurrent use.
type Device struct {
	ID       DeviceID
	Name     string
	Kind     DeviceKind
	Binding  hardware.Binding
	Inverted bool

	mu       sync.Mutex
	state    hardware.DeviceState
	lock     DeviceLock
	owner    LocoID
	priority uint8
}

// DeviceSnapshot is a consistent copy of a device's state.
type DeviceSnapshot struct {
	ID       DeviceID             `json:"id"`
	Name     string               `json:"name"`
	Kind     DeviceKind           `json:"kind"`
	Binding  hardware.Binding     `json:"binding"`
	Inverted bool                 `json:"inverted"`
	State    hardware.DeviceState `json:"state"`
	Lock     DeviceLock           `json:"lock"`
	Owner    LocoID               `json:"owner"`
	Priority uint8                `json:"priority"`
}

// NewDevice creates a free device in state Off.
func NewDevice(id DeviceID, name string, kind DeviceKind, binding hardware.Binding, inverted bool) *Device {
	return &Device{ID: id, Name: name, Kind: kind, Binding: binding, Inverted: inverted}
}

// Reserve claims the device for loco. A soft lock held by another loco is
// overridden when priority is strictly higher than the holder's.
func (d *Device) Reserve(loco LocoID, priority uint8) bool {
	if loco == LocoNone {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.lock {
	case DeviceFree:
	case DeviceSoftLocked:
		if d.owner == loco || priority <= d.priority {
			return false
		}
	default:
		return false
	}
	d.lock = DeviceReserved
	d.owner = loco
	d.priority = priority
	return true
}

// Lock promotes loco's reservation to a soft or hard lock.
func (d *Device) Lock(loco LocoID, hard bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lock != DeviceReserved || d.owner != loco {
		return false
	}
	if hard {
		d.lock = DeviceHardLocked
	} else {
		d.lock = DeviceSoftLocked
	}
	return true
}

// Release frees the device if loco holds it.
func (d *Device) Release(loco LocoID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lock == DeviceFree || d.owner != loco {
		return false
	}
	d.lock = DeviceFree
	d.owner = LocoNone
	d.priority = 0
	return true
}

// HardLockedByOther reports whether another loco holds a hard lock.
func (d *Device) HardLockedByOther(loco LocoID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lock == DeviceHardLocked && d.owner != loco
}

// setState records the commanded state for the lock holder and returns the
// state to send to the hardware (inverted devices get the opposite).
func (d *Device) setState(loco LocoID, state hardware.DeviceState) (hardware.DeviceState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lock == DeviceFree || d.owner != loco {
		return 0, false
	}
	d.state = state
	return d.wireState(state), true
}

// setManualState changes the state of a device nobody holds.
func (d *Device) setManualState(state hardware.DeviceState) (hardware.DeviceState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lock != DeviceFree {
		return 0, fmt.Errorf("%w: device %d held by loco %d", ErrDeviceLocked, d.ID, d.owner)
	}
	d.state = state
	return d.wireState(state), nil
}

func (d *Device) wireState(state hardware.DeviceState) hardware.DeviceState {
	if d.Inverted {
		return state.Invert()
	}
	return state
}

// State returns the last commanded state.
func (d *Device) State() hardware.DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Snapshot returns a consistent copy of the device state.
func (d *Device) Snapshot() DeviceSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DeviceSnapshot{
		ID:       d.ID,
		Name:     d.Name,
		Kind:     d.Kind,
		Binding:  d.Binding,
		Inverted: d.Inverted,
		State:    d.state,
		Lock:     d.lock,
		Owner:    d.owner,
		Priority: d.priority,
	}
}

// Serialize renders the device as a storage record, including the lock
// state and the loco holding it.
func (d *Device) Serialize() *storage.Record {
	s := d.Snapshot()
	return storage.NewRecord().
		Set("objectType", "Device").
		SetUint("deviceID", uint64(s.ID)).
		Set("name", s.Name).
		Set("kind", s.Kind.String()).
		SetUint("controlID", uint64(s.Binding.Control)).
		Set("protocol", string(s.Binding.Protocol)).
		SetUint("address", uint64(s.Binding.Address)).
		SetBool("inverted", s.Inverted).
		SetUint("state", uint64(s.State)).
		Set("lock", s.Lock.String()).
		SetUint("locoID", uint64(s.Owner)).
		SetUint("priority", uint64(s.Priority))
}

// DeserializeDevice rebuilds a device from a storage record, including the
// loco holding it.
func DeserializeDevice(rec *storage.Record) (*Device, error) {
	if rec.String("objectType", "") != "Device" {
		return nil, fmt.Errorf("%w: not a device record", ErrInvalidObject)
	}
	id := DeviceID(rec.Uint("deviceID", 0))
	if id == DeviceNone {
		return nil, fmt.Errorf("%w: device without id", ErrInvalidObject)
	}
	kind, err := ParseDeviceKind(rec.String("kind", "switch"))
	if err != nil {
		return nil, err
	}

	d := NewDevice(id, rec.String("name", ""), kind, hardware.Binding{
		Control:  hardware.ControlID(rec.Uint("controlID", 0)),
		Protocol: hardware.Protocol(rec.String("protocol", "")),
		Address:  uint16(rec.Uint("address", 0)),
	}, rec.Bool("inverted", false))
	d.state = hardware.DeviceState(rec.Uint("state", 0))
	d.owner = LocoID(rec.Uint("locoID", 0))
	if d.owner != LocoNone {
		d.lock = parseDeviceLock(rec.String("lock", "free"))
		if d.lock == DeviceFree {
			d.lock = DeviceHardLocked
		}
		d.priority = uint8(rec.Uint("priority", 0))
	}
	return d, nil
}
