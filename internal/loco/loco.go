package loco

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/routing"
)

// Loco is a locomotive and its automode control loop.
//
// All state is guarded by mu. The control loop holds mu for the whole of a
// tick and releases it only while waiting for the next one. Feedback events
// are delivered under the same lock, so a pending event is never lost or
// processed twice.
//
// Thread Safety: All methods are safe for concurrent use.
type Loco struct {
	ID layout.LocoID

	env    Environment
	opts   Options
	logger Logger

	mu          sync.Mutex
	name        string
	binding     hardware.Binding
	length      uint32
	commuter    bool
	speeds      Speeds
	policy      routing.Policy
	state       State
	speed       hardware.Speed
	orientation hardware.Orientation
	functions   uint32

	trackFrom    layout.TrackID
	trackFirst   layout.TrackID
	trackSecond  layout.TrackID
	streetFirst  layout.StreetID
	streetSecond layout.StreetID
	triggers     layout.Triggers
	firstTrigger layout.FeedbackID

	inbox   chan event
	pending [eventKinds]bool
	wake    chan struct{}
	done    chan struct{}
}

// New creates a locomotive in manual mode.
func New(cfg Config, env Environment, opts Options) (*Loco, error) {
	if cfg.ID == layout.LocoNone {
		return nil, fmt.Errorf("%w: loco without id", ErrInvalidConfig)
	}
	if err := cfg.Speeds.validate(); err != nil {
		return nil, err
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultOptions().Tick
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = DefaultOptions().QueueSize
	}

	return &Loco{
		ID:          cfg.ID,
		env:         env,
		opts:        opts,
		logger:      noopLogger{},
		name:        cfg.Name,
		binding:     cfg.Binding,
		length:      cfg.Length,
		commuter:    cfg.Commuter,
		speeds:      cfg.Speeds,
		policy:      cfg.Policy,
		orientation: cfg.Orientation,
		functions:   cfg.Functions,
		trackFrom:   cfg.Track,
		inbox:       make(chan event, opts.QueueSize),
		wake:        make(chan struct{}, 1),
	}, nil
}

func (s Speeds) validate() error {
	if s.Max > hardware.MaxSpeed {
		return fmt.Errorf("%w: max speed %d above %d", ErrInvalidConfig, s.Max, hardware.MaxSpeed)
	}
	if s.Travel > s.Max || s.Reduced > s.Travel || s.Creep > s.Reduced {
		return fmt.Errorf("%w: speeds must satisfy creep <= reduced <= travel <= max", ErrInvalidConfig)
	}
	return nil
}

// SetLogger sets the logger for the loco.
func (l *Loco) SetLogger(logger Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	l.logger = logger
}

// Name returns the loco name.
func (l *Loco) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// State returns the automode state.
func (l *Loco) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Snapshot returns a consistent copy of the loco state.
func (l *Loco) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Loco) snapshotLocked() Snapshot {
	return Snapshot{
		ID:           l.ID,
		Name:         l.name,
		Binding:      l.binding,
		State:        l.state,
		Speed:        l.speed,
		Orientation:  l.orientation,
		Functions:    l.functions,
		Length:       l.length,
		Commuter:     l.commuter,
		Speeds:       l.speeds,
		Policy:       l.policy,
		TrackFrom:    l.trackFrom,
		TrackFirst:   l.trackFirst,
		TrackSecond:  l.trackSecond,
		StreetFirst:  l.streetFirst,
		StreetSecond: l.streetSecond,
		Triggers:     l.triggers,
		FirstTrigger: l.firstTrigger,
	}
}

// Config returns the persisted configuration.
func (l *Loco) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Config{
		ID:          l.ID,
		Name:        l.name,
		Binding:     l.binding,
		Orientation: l.orientation,
		Length:      l.length,
		Commuter:    l.commuter,
		Speeds:      l.speeds,
		Policy:      l.policy,
		Functions:   l.functions,
		Track:       l.trackFrom,
	}
}

func (l *Loco) publishLocked() {
	l.env.LocoChanged(l.snapshotLocked())
}

func (l *Loco) setStateLocked(s State) {
	if l.state == s {
		return
	}
	l.logger.Debug("loco state changed",
		"loco", l.ID,
		"from", l.state.Detail(),
		"to", s.Detail(),
	)
	l.state = s
	l.publishLocked()
}

func (l *Loco) setSpeedLocked(speed hardware.Speed) {
	if speed > l.speeds.Max {
		speed = l.speeds.Max
	}
	l.speed = speed
	l.env.Dispatcher().SetSpeed(l.binding, speed)
	l.publishLocked()
}

func (l *Loco) setOrientationLocked(o hardware.Orientation) {
	l.orientation = o
	l.env.Dispatcher().SetOrientation(l.binding, o)
	l.publishLocked()
}

func (l *Loco) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func automodeActive(s State) bool {
	return s != StateManual && s != StateOff
}

// --- Manual control ---

// SetSpeed commands a speed by hand. Speed zero is always accepted and is
// also the reset out of error state; other speeds need manual mode.
func (l *Loco) SetSpeed(speed hardware.Speed) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if speed == hardware.MinSpeed {
		l.setSpeedLocked(speed)
		if l.state == StateError {
			l.logger.Info("loco error state reset", "loco", l.ID)
			l.setStateLocked(StateOff)
			l.signal()
		}
		return nil
	}
	if automodeActive(l.state) {
		return fmt.Errorf("%w: loco %d is %s", ErrAutomodeActive, l.ID, l.state)
	}
	l.setSpeedLocked(speed)
	return nil
}

// SetOrientation changes the travel direction by hand.
func (l *Loco) SetOrientation(o hardware.Orientation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if automodeActive(l.state) {
		return fmt.Errorf("%w: loco %d is %s", ErrAutomodeActive, l.ID, l.state)
	}
	l.setOrientationLocked(o)
	return nil
}

// SetFunction switches a decoder function. It is allowed in any state.
func (l *Loco) SetFunction(nr uint8, on bool) error {
	if nr > hardware.MaxFunction {
		return fmt.Errorf("%w: %d", ErrInvalidFunction, nr)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if on {
		l.functions |= 1 << nr
	} else {
		l.functions &^= 1 << nr
	}
	l.env.Dispatcher().SetFunction(l.binding, nr, on)
	l.publishLocked()
	return nil
}

// AssignTrack records the track the loco stands on. The caller has already
// acquired the track in the layout.
func (l *Loco) AssignTrack(track layout.TrackID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateManual {
		return fmt.Errorf("%w: loco %d is %s", ErrAutomodeActive, l.ID, l.state)
	}
	if l.trackFrom != layout.TrackNone {
		return fmt.Errorf("%w: loco %d on track %d", ErrHasTrack, l.ID, l.trackFrom)
	}
	l.trackFrom = track
	l.publishLocked()
	return nil
}

// Release gives back every street and track the loco holds and clears its
// triggers. It is the manual clean-up path, allowed in manual and error
// state; from error state it also ends the control loop.
func (l *Loco) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateManual, StateOff:
	case StateError:
		l.setStateLocked(StateOff)
		l.signal()
	default:
		return fmt.Errorf("%w: loco %d is %s", ErrAutomodeActive, l.ID, l.state)
	}

	for _, s := range []layout.StreetID{l.streetFirst, l.streetSecond} {
		if s != layout.StreetNone {
			l.env.ReleaseStreet(s, l.ID)
		}
	}
	for _, t := range []layout.TrackID{l.trackFrom, l.trackFirst, l.trackSecond} {
		if t != layout.TrackNone {
			l.env.ReleaseTrack(t, l.ID)
		}
	}
	l.streetFirst, l.streetSecond = layout.StreetNone, layout.StreetNone
	l.trackFrom, l.trackFirst, l.trackSecond = layout.TrackNone, layout.TrackNone, layout.TrackNone
	l.triggers = layout.Triggers{}
	l.firstTrigger = layout.FeedbackNone
	l.logger.Info("loco released", "loco", l.ID)
	l.publishLocked()
	return nil
}

// --- Automode lifecycle ---

// Start enters automode. The loco must stand on a track and must not be in
// error state. A loop that is still winding down from Off is waited for.
func (l *Loco) Start() error {
	l.mu.Lock()
	if l.state == StateOff {
		done := l.done
		l.mu.Unlock()
		if done != nil {
			<-done
		}
		l.mu.Lock()
	}
	defer l.mu.Unlock()

	if l.trackFrom == layout.TrackNone {
		return fmt.Errorf("%w: loco %d", ErrNotOnTrack, l.ID)
	}
	if l.state == StateError {
		return fmt.Errorf("%w: loco %d", ErrErrorState, l.ID)
	}
	if l.state != StateManual {
		return fmt.Errorf("%w: loco %d is %s", ErrAlreadyRunning, l.ID, l.state)
	}

	l.drainLocked()
	l.setStateLocked(StateSearchingFirst)
	l.done = make(chan struct{})
	go l.run(l.done)
	l.logger.Info("loco entered automode", "loco", l.ID, "track", l.trackFrom)
	return nil
}

// Stop requests manual mode. A loco that has not left its track stops at
// the next tick; a loco underway enters Stopping and finishes its current
// journey first. It returns the resulting state. Use Wait to block until
// the loop has ended.
func (l *Loco) Stop() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateManual:
		l.setSpeedLocked(hardware.MinSpeed)
	case StateSearchingFirst, StateOff, StateError:
		l.setStateLocked(StateOff)
	case StateSearchingSecond, StateRunning, StateStopping:
		l.logger.Info("loco stops after reaching its destination", "loco", l.ID)
		l.setStateLocked(StateStopping)
	}
	l.signal()
	return l.state
}

// Wait blocks until the control loop has ended or ctx is done.
func (l *Loco) Wait(ctx context.Context) error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops automode and waits for the loop to return to manual mode. If
// ctx ends first, the current journey is abandoned: the loco is stopped
// where it is, keeps its reservations, and Close waits for the loop to exit
// at its next tick. ErrForcedStop is returned in that case.
func (l *Loco) Close(ctx context.Context) error {
	l.Stop()
	if err := l.Wait(ctx); err == nil {
		return nil
	}

	l.mu.Lock()
	l.logger.Warn("loco did not reach its destination before shutdown",
		"loco", l.ID,
		"state", l.state.Detail(),
	)
	l.setSpeedLocked(hardware.MinSpeed)
	l.setStateLocked(StateOff)
	l.signal()
	done := l.done
	l.mu.Unlock()

	if done != nil {
		<-done
	}
	return fmt.Errorf("%w: loco %d", ErrForcedStop, l.ID)
}
