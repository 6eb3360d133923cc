package hardware

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger is the logging interface used by the hardware package.
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

// Dispatcher is the command sink the automode core talks to.
//
// All calls are fire-and-forget: they never block on the hardware and never
// report delivery failures. Backends log what they cannot deliver.
type Dispatcher interface {
	SetSpeed(loco Binding, speed Speed)
	SetOrientation(loco Binding, orientation Orientation)
	SetFunction(loco Binding, nr uint8, on bool)
	SetDevice(device Binding, state DeviceState)
	Booster(state BoosterState)
}

// Backend is one hardware implementation (virtual bus, MQTT bridge, ...).
// Accessory is called twice per device command when the control is configured
// with a pulse: once with on=true and once, after the pulse, with on=false.
type Backend interface {
	Name() string
	Capabilities() Capability
	LocoSpeed(loco Binding, speed Speed)
	LocoOrientation(loco Binding, orientation Orientation)
	LocoFunction(loco Binding, nr uint8, on bool)
	Accessory(device Binding, state DeviceState, on bool)
	Booster(state BoosterState)
	Close() error
}

// Control is one registered backend with its per-control settings.
type Control struct {
	ID      ControlID
	Name    string
	Backend Backend
	Pulse   time.Duration
}

// ControlInfo is the read-only view of a control returned by Controls.
type ControlInfo struct {
	ID           ControlID `json:"id"`
	Name         string    `json:"name"`
	Backend      string    `json:"backend"`
	Capabilities []string  `json:"capabilities"`
	PulseMS      int64     `json:"pulse_ms"`
}

// Handler routes Dispatcher calls to the backend owning the binding's control.
//
// Thread Safety: All methods are safe for concurrent use.
type Handler struct {
	mu       sync.RWMutex
	controls map[ControlID]*Control
	booster  BoosterState
	logger   Logger
}

// NewHandler creates an empty Handler.
func NewHandler() *Handler {
	return &Handler{
		controls: make(map[ControlID]*Control),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the handler.
func (h *Handler) SetLogger(logger Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	h.logger = logger
}

// Register adds a control. IDs must be unique.
func (h *Handler) Register(c Control) error {
	if c.Backend == nil {
		return fmt.Errorf("%w: control %d has no backend", ErrUnknownBackend, c.ID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.controls[c.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateControl, c.ID)
	}
	ctl := c
	h.controls[c.ID] = &ctl
	h.logger.Info("hardware control registered",
		"control", c.ID,
		"name", c.Name,
		"backend", c.Backend.Name(),
	)
	return nil
}

// Controls lists the registered controls ordered by ID.
func (h *Handler) Controls() []ControlInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ControlInfo, 0, len(h.controls))
	for _, c := range h.controls {
		out = append(out, ControlInfo{
			ID:           c.ID,
			Name:         c.Name,
			Backend:      c.Backend.Name(),
			Capabilities: capabilityNames(c.Backend.Capabilities()),
			PulseMS:      c.Pulse.Milliseconds(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BoosterState returns the last booster state commanded.
func (h *Handler) BoosterState() BoosterState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.booster
}

func (h *Handler) control(id ControlID, want Capability) (*Control, Logger, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.controls[id]
	if !ok {
		h.logger.Warn("command for unknown control dropped", "control", id)
		return nil, h.logger, false
	}
	if !c.Backend.Capabilities().Has(want) {
		h.logger.Debug("control lacks capability", "control", id, "capability", capabilityNames(want))
		return nil, h.logger, false
	}
	return c, h.logger, true
}

// SetSpeed implements Dispatcher.
func (h *Handler) SetSpeed(loco Binding, speed Speed) {
	if speed > MaxSpeed {
		speed = MaxSpeed
	}
	if c, _, ok := h.control(loco.Control, CapLocoSpeed); ok {
		c.Backend.LocoSpeed(loco, speed)
	}
}

// SetOrientation implements Dispatcher.
func (h *Handler) SetOrientation(loco Binding, orientation Orientation) {
	if c, _, ok := h.control(loco.Control, CapLocoOrientation); ok {
		c.Backend.LocoOrientation(loco, orientation)
	}
}

// SetFunction implements Dispatcher.
func (h *Handler) SetFunction(loco Binding, nr uint8, on bool) {
	if nr > MaxFunction {
		return
	}
	if c, _, ok := h.control(loco.Control, CapLocoFunction); ok {
		c.Backend.LocoFunction(loco, nr, on)
	}
}

// SetDevice implements Dispatcher. Controls with a pulse switch the coil on,
// then off again after the pulse duration.
func (h *Handler) SetDevice(device Binding, state DeviceState) {
	c, logger, ok := h.control(device.Control, CapAccessory)
	if !ok {
		return
	}

	c.Backend.Accessory(device, state, true)
	if c.Pulse <= 0 {
		return
	}

	backend := c.Backend
	time.AfterFunc(c.Pulse, func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in accessory pulse", "device", device.String(), "panic", r)
			}
		}()
		backend.Accessory(device, state, false)
	})
}

// Booster implements Dispatcher. The command is sent to every control that
// supports it.
func (h *Handler) Booster(state BoosterState) {
	h.mu.Lock()
	h.booster = state
	backends := make([]Backend, 0, len(h.controls))
	for _, c := range h.controls {
		if c.Backend.Capabilities().Has(CapBooster) {
			backends = append(backends, c.Backend)
		}
	}
	logger := h.logger
	h.mu.Unlock()

	logger.Info("booster", "state", state.String(), "controls", len(backends))
	for _, b := range backends {
		b.Booster(state)
	}
}

// Close closes every backend and returns the first error.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for id, c := range h.controls {
		if err := c.Backend.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing control %d: %w", id, err)
		}
	}
	h.controls = make(map[ControlID]*Control)
	return firstErr
}

func capabilityNames(c Capability) []string {
	names := []struct {
		cap  Capability
		name string
	}{
		{CapLocoSpeed, "loco_speed"},
		{CapLocoOrientation, "loco_orientation"},
		{CapLocoFunction, "loco_function"},
		{CapAccessory, "accessory"},
		{CapBooster, "booster"},
		{CapFeedback, "feedback"},
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if c.Has(n.cap) {
			out = append(out, n.name)
		}
	}
	return out
}
