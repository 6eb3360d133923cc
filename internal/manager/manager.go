package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/loco"
	"github.com/nerrad567/railcontrol-core/internal/routing"
	"github.com/nerrad567/railcontrol-core/internal/storage"
)

// Default settings.
const (
	DefaultTracksToReserve = 2
	DefaultStopTimeout     = 30 * time.Second
	DefaultEventBuffer     = 1024
)

// Logger is the logging interface used by the manager.
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

// Options configures a Manager.
type Options struct {
	// Loco configures every automode loop.
	Loco loco.Options

	// TracksToReserve is 1 (one leg ahead) or 2 (two legs ahead).
	TracksToReserve int

	// Policy is the default destination selection policy.
	Policy routing.Policy

	// StopTimeout bounds how long Close waits for running locos to arrive.
	StopTimeout time.Duration

	// EventBuffer is the capacity of the event queue feeding observers.
	EventBuffer int
}

// Manager owns the layout, the routing coordinator and every locomotive. It
// dispatches feedback to the locos, exposes manual control, persists the
// layout and fans state changes out to observers.
//
// Thread Safety: All methods are safe for concurrent use.
type Manager struct {
	layout *layout.Layout
	coord  *routing.Coordinator
	hw     hardware.Dispatcher
	repo   storage.Repository
	opts   Options
	logger Logger
	now    func() time.Time

	mu        sync.RWMutex
	locos     map[layout.LocoID]*loco.Loco
	observers []Observer

	boosterMu sync.Mutex
	booster   hardware.BoosterState

	events  chan Event
	dropped atomic.Uint64
	done    chan struct{}
	wg      sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a manager for l. Device and loco commands go to hw; repo may
// be nil when nothing is persisted.
func New(l *layout.Layout, hw hardware.Dispatcher, repo storage.Repository, opts Options) *Manager {
	if opts.TracksToReserve < 1 || opts.TracksToReserve > 2 {
		opts.TracksToReserve = DefaultTracksToReserve
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.EventBuffer < 1 {
		opts.EventBuffer = DefaultEventBuffer
	}

	m := &Manager{
		layout: l,
		coord:  routing.NewCoordinator(l, opts.Policy),
		hw:     hw,
		repo:   repo,
		opts:   opts,
		logger: noopLogger{},
		now:    time.Now,
		locos:  make(map[layout.LocoID]*loco.Loco),
		events: make(chan Event, opts.EventBuffer),
		done:   make(chan struct{}),
	}
	l.SetObserver(m.layoutChanged)
	return m
}

// SetLogger sets the logger for the manager, its layout, its coordinator and
// every loco added later. Call it before Start.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
	m.layout.SetLogger(logger)
	m.coord.SetLogger(logger)
}

// Layout returns the managed layout for read access.
func (m *Manager) Layout() *layout.Layout {
	return m.layout
}

// Coordinator returns the routing coordinator.
func (m *Manager) Coordinator() *routing.Coordinator {
	return m.coord
}

// Start launches the event fan-out goroutine.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.fanOut()
	})
}

// Close stops every loco, waiting up to the stop timeout for running locos
// to reach their destination, and then stops event delivery. Locos that had
// to be stopped where they were are reported in the returned error.
func (m *Manager) Close(ctx context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, m.opts.StopTimeout)
		defer cancel()

		var g errgroup.Group
		for _, lo := range m.locoList() {
			g.Go(func() error {
				return lo.Close(ctx)
			})
		}
		err = g.Wait()
		if err != nil {
			m.logger.Warn("locos stopped before reaching their destination", "error", err)
		}

		close(m.done)
		m.wg.Wait()
		m.logger.Info("manager stopped")
	})
	return err
}

func (m *Manager) locoList() []*loco.Loco {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*loco.Loco, 0, len(m.locos))
	for _, lo := range m.locos {
		out = append(out, lo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) loco(id layout.LocoID) (*loco.Loco, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lo, ok := m.locos[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrLocoNotFound, id)
	}
	return lo, nil
}

// --- Hardware ---

// Booster switches track power on every control.
func (m *Manager) Booster(state hardware.BoosterState) {
	m.boosterMu.Lock()
	m.booster = state
	m.boosterMu.Unlock()

	m.hw.Booster(state)
	m.emit(EventBoosterChanged, BoosterChanged{State: state})
}

// BoosterState returns the last commanded booster state.
func (m *Manager) BoosterState() hardware.BoosterState {
	m.boosterMu.Lock()
	defer m.boosterMu.Unlock()
	return m.booster
}

// FeedbackPin implements hardware.FeedbackSink: it resolves the feedback on
// a control pin and applies the reading.
func (m *Manager) FeedbackPin(control hardware.ControlID, pin uint16, occupied bool) error {
	id, ok := m.layout.FeedbackByPin(control, pin)
	if !ok {
		return fmt.Errorf("%w: control %d pin %d", layout.ErrFeedbackNotFound, control, pin)
	}
	return m.FeedbackState(id, occupied)
}

// FeedbackState applies a raw reading to a feedback. A transition to
// occupied is delivered to every loco; each loco reacts only to its own
// triggers.
func (m *Manager) FeedbackState(id layout.FeedbackID, raw bool) error {
	occupied, changed, err := m.layout.SetFeedbackState(id, raw)
	if err != nil {
		return err
	}
	if !changed || !occupied {
		return nil
	}
	m.logger.Debug("feedback occupied", "feedback", id)
	for _, lo := range m.locoList() {
		lo.Notify(id)
	}
	return nil
}

// DeviceState commands a device by hand. Devices held by a loco are refused
// with layout.ErrDeviceLocked.
func (m *Manager) DeviceState(id layout.DeviceID, state hardware.DeviceState) error {
	return m.layout.SetDeviceState(id, state)
}

// BlockTrack blocks or unblocks a track for new reservations.
func (m *Manager) BlockTrack(id layout.TrackID, blocked bool) error {
	if err := m.layout.BlockTrack(id, blocked); err != nil {
		return err
	}
	m.logger.Info("track block changed", "track", id, "blocked", blocked)
	return nil
}

// --- loco.Environment ---

// env is the view of the manager handed to each loco.
type env struct {
	m *Manager
}

var _ loco.Environment = env{}

func (e env) TrackOwner(track layout.TrackID) layout.LocoID {
	return e.m.layout.TrackOwner(track)
}

func (e env) TrackDirection(track layout.TrackID) hardware.Orientation {
	return e.m.layout.TrackDirection(track)
}

func (e env) SetTrackDirection(track layout.TrackID, o hardware.Orientation) error {
	return e.m.layout.SetTrackDirection(track, o)
}

func (e env) ReleaseTrack(track layout.TrackID, lo layout.LocoID) bool {
	return e.m.layout.ReleaseTrack(track, lo)
}

func (e env) ReleaseStreet(street layout.StreetID, lo layout.LocoID) bool {
	return e.m.layout.ReleaseStreet(street, lo)
}

func (e env) SetFeedbackLoco(feedback layout.FeedbackID, lo layout.LocoID) {
	e.m.layout.SetFeedbackLoco(feedback, lo)
}

func (e env) Search(req routing.Request) (routing.Leg, bool) {
	return e.m.coord.Search(req)
}

func (e env) TracksToReserve() int {
	return e.m.opts.TracksToReserve
}

func (e env) Dispatcher() hardware.Dispatcher {
	return boosterTap{Dispatcher: e.m.hw, m: e.m}
}

func (e env) LocoChanged(s loco.Snapshot) {
	e.m.emit(EventLocoStateChanged, s)
}

func (e env) DestinationReached(lo layout.LocoID, street layout.StreetID, track layout.TrackID) {
	e.m.emit(EventLocoDestinationReached, DestinationReached{Loco: lo, Street: street, Track: track})
}

// boosterTap routes booster commands issued by locos through the manager so
// they are recorded and published.
type boosterTap struct {
	hardware.Dispatcher
	m *Manager
}

func (b boosterTap) Booster(state hardware.BoosterState) {
	b.m.Booster(state)
}
