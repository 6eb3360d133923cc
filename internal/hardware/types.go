package hardware

import (
	"fmt"
	"strings"
)

// ControlID identifies one configured hardware control (command station,
// MQTT bridge, virtual bus). Every locomotive, device and feedback is bound
// to exactly one control.
type ControlID uint8

// Protocol is the decoder protocol on the track (e.g. "dcc", "mm", "mfx").
// It is opaque to the core and passed through to the backend.
type Protocol string

// Binding is the protocol/address pair a backend needs to reach a decoder.
type Binding struct {
	Control  ControlID `json:"control" yaml:"control"`
	Protocol Protocol  `json:"protocol" yaml:"protocol"`
	Address  uint16    `json:"address" yaml:"address"`
}

// String returns "control/protocol/address", used in log fields.
func (b Binding) String() string {
	return fmt.Sprintf("%d/%s/%d", b.Control, b.Protocol, b.Address)
}

// Speed is a locomotive speed step in the range MinSpeed..MaxSpeed.
type Speed uint16

// Speed bounds.
const (
	MinSpeed Speed = 0
	MaxSpeed Speed = 1023
)

// Orientation is the travel direction of a locomotive. The same type is used
// for the side a locomotive faces on a track and the entry/exit side of a route.
type Orientation uint8

// Orientations.
const (
	OrientationLeft Orientation = iota
	OrientationRight
)

// Flip returns the opposite orientation.
func (o Orientation) Flip() Orientation {
	if o == OrientationLeft {
		return OrientationRight
	}
	return OrientationLeft
}

// String returns "left" or "right".
func (o Orientation) String() string {
	if o == OrientationRight {
		return "right"
	}
	return "left"
}

// ParseOrientation parses "left" or "right" (case-insensitive).
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "right":
		return OrientationRight, nil
	case "left":
		return OrientationLeft, nil
	default:
		return OrientationLeft, fmt.Errorf("%w: orientation %q", ErrInvalidValue, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Orientation) UnmarshalText(text []byte) error {
	parsed, err := ParseOrientation(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// DeviceState is the commanded position of a switch, signal or accessory.
// Off maps to straight/red, On to turnout/green.
type DeviceState uint8

// Device states.
const (
	DeviceStateOff DeviceState = iota
	DeviceStateOn
)

// Invert returns the opposite state, used for devices wired the other way round.
func (s DeviceState) Invert() DeviceState {
	if s == DeviceStateOff {
		return DeviceStateOn
	}
	return DeviceStateOff
}

// String returns "off" or "on".
func (s DeviceState) String() string {
	if s == DeviceStateOn {
		return "on"
	}
	return "off"
}

// ParseDeviceState parses "on" or "off". "turnout", "green", "straight" and
// "red" are accepted as aliases.
func ParseDeviceState(s string) (DeviceState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "turnout", "green":
		return DeviceStateOn, nil
	case "off", "straight", "red":
		return DeviceStateOff, nil
	default:
		return DeviceStateOff, fmt.Errorf("%w: device state %q", ErrInvalidValue, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DeviceState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *DeviceState) UnmarshalText(text []byte) error {
	parsed, err := ParseDeviceState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// BoosterState is the track power state of the whole layout.
type BoosterState uint8

// Booster states.
const (
	BoosterStop BoosterState = iota
	BoosterGo
)

// String returns "stop" or "go".
func (s BoosterState) String() string {
	if s == BoosterGo {
		return "go"
	}
	return "stop"
}

// ParseBoosterState parses "go" or "stop".
func ParseBoosterState(s string) (BoosterState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "go", "on":
		return BoosterGo, nil
	case "stop", "off":
		return BoosterStop, nil
	default:
		return BoosterStop, fmt.Errorf("%w: booster state %q", ErrInvalidValue, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s BoosterState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Capability flags advertise which operations a backend supports.
type Capability uint16

// Capabilities.
const (
	CapLocoSpeed Capability = 1 << iota
	CapLocoOrientation
	CapLocoFunction
	CapAccessory
	CapBooster
	CapFeedback
)

// Has reports whether all bits of want are set.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// MaxFunction is the highest locomotive function number.
const MaxFunction = 31
