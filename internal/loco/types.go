package loco

import (
	"time"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/routing"
)

// State is the automode state of a locomotive.
type State uint8

// Automode states. Only Manual and Off have no control loop running.
const (
	StateManual State = iota
	StateOff
	StateSearchingFirst
	StateSearchingSecond
	StateRunning
	StateStopping
	StateError
)

// String returns the state name shown to users. Both search states render
// as "searching".
func (s State) String() string {
	switch s {
	case StateManual:
		return "manual"
	case StateOff:
		return "off"
	case StateSearchingFirst, StateSearchingSecond:
		return "searching"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Detail returns a name that distinguishes the two search states, for logs.
func (s State) Detail() string {
	switch s {
	case StateSearchingFirst:
		return "searching_first"
	case StateSearchingSecond:
		return "searching_second"
	default:
		return s.String()
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Default speed profile, in hardware speed steps.
const (
	DefaultTravelSpeed  hardware.Speed = 700
	DefaultReducedSpeed hardware.Speed = 400
	DefaultCreepSpeed   hardware.Speed = 100
)

// Speeds is the speed profile used in automode.
type Speeds struct {
	Max     hardware.Speed `json:"max" yaml:"max"`
	Travel  hardware.Speed `json:"travel" yaml:"travel"`
	Reduced hardware.Speed `json:"reduced" yaml:"reduced"`
	Creep   hardware.Speed `json:"creep" yaml:"creep"`
}

// DefaultSpeeds returns the default speed profile.
func DefaultSpeeds() Speeds {
	return Speeds{
		Max:     hardware.MaxSpeed,
		Travel:  DefaultTravelSpeed,
		Reduced: DefaultReducedSpeed,
		Creep:   DefaultCreepSpeed,
	}
}

// Config is the persisted configuration of a locomotive.
type Config struct {
	ID          layout.LocoID        `json:"id" yaml:"id"`
	Name        string               `json:"name" yaml:"name"`
	Binding     hardware.Binding     `json:"binding" yaml:"binding"`
	Orientation hardware.Orientation `json:"orientation" yaml:"orientation"`
	Length      uint32               `json:"length" yaml:"length"`
	Commuter    bool                 `json:"commuter" yaml:"commuter"`
	Speeds      Speeds               `json:"speeds" yaml:"speeds"`
	Policy      routing.Policy       `json:"policy,omitempty" yaml:"policy"`
	Functions   uint32               `json:"functions" yaml:"functions"`
	// Track is the track the loco stands on, or TrackNone.
	Track layout.TrackID `json:"track" yaml:"track"`
}

// Options are runtime settings shared by all locomotives.
type Options struct {
	// Tick is the period of the automode loop.
	Tick time.Duration
	// QueueSize bounds the number of pending feedback events per loco.
	QueueSize int
}

// DefaultOptions returns a one second tick and a queue of eight events.
func DefaultOptions() Options {
	return Options{Tick: time.Second, QueueSize: 8}
}

// Snapshot is a consistent copy of a locomotive's state.
type Snapshot struct {
	ID           layout.LocoID        `json:"id"`
	Name         string               `json:"name"`
	Binding      hardware.Binding     `json:"binding"`
	State        State                `json:"state"`
	Speed        hardware.Speed       `json:"speed"`
	Orientation  hardware.Orientation `json:"orientation"`
	Functions    uint32               `json:"functions"`
	Length       uint32               `json:"length"`
	Commuter     bool                 `json:"commuter"`
	Speeds       Speeds               `json:"speeds"`
	Policy       routing.Policy       `json:"policy,omitempty"`
	TrackFrom    layout.TrackID       `json:"track_from"`
	TrackFirst   layout.TrackID       `json:"track_first"`
	TrackSecond  layout.TrackID       `json:"track_second"`
	StreetFirst  layout.StreetID      `json:"street_first"`
	StreetSecond layout.StreetID      `json:"street_second"`
	Triggers     layout.Triggers      `json:"triggers"`
	FirstTrigger layout.FeedbackID    `json:"first_trigger"`
}

// Environment is what a locomotive needs from the rest of the system. It is
// implemented by the manager.
//
// LocoChanged and DestinationReached are called with the loco's lock held;
// implementations must not block and must not call back into the loco.
type Environment interface {
	TrackOwner(track layout.TrackID) layout.LocoID
	TrackDirection(track layout.TrackID) hardware.Orientation
	SetTrackDirection(track layout.TrackID, o hardware.Orientation) error
	ReleaseTrack(track layout.TrackID, loco layout.LocoID) bool
	ReleaseStreet(street layout.StreetID, loco layout.LocoID) bool
	SetFeedbackLoco(feedback layout.FeedbackID, loco layout.LocoID)
	Search(req routing.Request) (routing.Leg, bool)
	TracksToReserve() int
	Dispatcher() hardware.Dispatcher
	LocoChanged(s Snapshot)
	DestinationReached(loco layout.LocoID, street layout.StreetID, track layout.TrackID)
}

// Logger is the logging interface used by the loco package.
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
