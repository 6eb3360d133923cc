package layout

import (
	"fmt"
	"strings"
)

// Identifiers. Zero means "none" for every kind.
type (
	LocoID     uint32
	TrackID    uint32
	StreetID   uint32
	DeviceID   uint32
	FeedbackID uint32
)

// None values.
const (
	LocoNone     LocoID     = 0
	TrackNone    TrackID    = 0
	StreetNone   StreetID   = 0
	DeviceNone   DeviceID   = 0
	FeedbackNone FeedbackID = 0
)

// Logger is the logging interface used by the layout package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// LockState is the reservation state of a track or street.
type LockState uint8

// Lock states.
const (
	LockFree LockState = iota
	LockReserved
	LockLocked
)

// String returns "free", "reserved" or "locked".
func (s LockState) String() string {
	switch s {
	case LockReserved:
		return "reserved"
	case LockLocked:
		return "locked"
	default:
		return "free"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s LockState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func parseLockState(s string) LockState {
	switch s {
	case "reserved":
		return LockReserved
	case "locked":
		return LockLocked
	default:
		return LockFree
	}
}

// Commuter restricts a street to push-pull trains ("only"), excludes them
// ("never"), or accepts any train.
type Commuter uint8

// Commuter restrictions.
const (
	CommuterAny Commuter = iota
	CommuterOnly
	CommuterNever
)

// String returns "any", "only" or "never".
func (c Commuter) String() string {
	switch c {
	case CommuterOnly:
		return "only"
	case CommuterNever:
		return "never"
	default:
		return "any"
	}
}

// Allows reports whether a train with the given commuter flag may use the street.
func (c Commuter) Allows(commuter bool) bool {
	switch c {
	case CommuterOnly:
		return commuter
	case CommuterNever:
		return !commuter
	default:
		return true
	}
}

// ParseCommuter parses "any", "only" or "never". Empty means any.
func ParseCommuter(s string) (Commuter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return CommuterAny, nil
	case "only":
		return CommuterOnly, nil
	case "never":
		return CommuterNever, nil
	default:
		return CommuterAny, fmt.Errorf("%w: commuter %q", ErrInvalidValue, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Commuter) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Commuter) UnmarshalText(text []byte) error {
	parsed, err := ParseCommuter(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Triggers are the feedback contacts along a street that pace an arriving
// train. Any of them may be FeedbackNone.
type Triggers struct {
	Reduced FeedbackID `json:"reduced" yaml:"reduced"`
	Creep   FeedbackID `json:"creep" yaml:"creep"`
	Stop    FeedbackID `json:"stop" yaml:"stop"`
	Over    FeedbackID `json:"over" yaml:"over"`
}
