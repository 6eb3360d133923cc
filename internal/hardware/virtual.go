package hardware

import (
	"sync"
	"time"
)

// maxVirtualHistory bounds the command history kept by Virtual.
const maxVirtualHistory = 512

// CommandKind names a hardware command.
type CommandKind string

// Command kinds, also used as the "command" field of MQTT command messages.
const (
	CommandLocoSpeed       CommandKind = "loco_speed"
	CommandLocoOrientation CommandKind = "loco_orientation"
	CommandLocoFunction    CommandKind = "loco_function"
	CommandAccessory       CommandKind = "accessory"
	CommandBooster         CommandKind = "booster"
)

// Command is one recorded hardware command.
type Command struct {
	Kind        CommandKind
	Binding     Binding
	Speed       Speed
	Orientation Orientation
	Function    uint8
	On          bool
	State       DeviceState
	Booster     BoosterState
	At          time.Time
}

// Virtual is a backend without hardware. It logs every command and keeps a
// bounded history, which is what the tests and the demo layout run against.
type Virtual struct {
	name    string
	mu      sync.Mutex
	history []Command
	logger  Logger
}

// NewVirtual creates a virtual backend.
func NewVirtual(name string, logger Logger) *Virtual {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Virtual{name: name, logger: logger}
}

// Name implements Backend.
func (v *Virtual) Name() string { return "virtual" }

// Capabilities implements Backend.
func (v *Virtual) Capabilities() Capability {
	return CapLocoSpeed | CapLocoOrientation | CapLocoFunction | CapAccessory | CapBooster
}

func (v *Virtual) record(c Command) {
	c.At = time.Now()
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.history) >= maxVirtualHistory {
		v.history = v.history[1:]
	}
	v.history = append(v.history, c)
}

// LocoSpeed implements Backend.
func (v *Virtual) LocoSpeed(loco Binding, speed Speed) {
	v.logger.Debug("virtual loco speed", "control", v.name, "loco", loco.String(), "speed", speed)
	v.record(Command{Kind: CommandLocoSpeed, Binding: loco, Speed: speed})
}

// LocoOrientation implements Backend.
func (v *Virtual) LocoOrientation(loco Binding, orientation Orientation) {
	v.logger.Debug("virtual loco orientation", "control", v.name, "loco", loco.String(), "orientation", orientation.String())
	v.record(Command{Kind: CommandLocoOrientation, Binding: loco, Orientation: orientation})
}

// LocoFunction implements Backend.
func (v *Virtual) LocoFunction(loco Binding, nr uint8, on bool) {
	v.logger.Debug("virtual loco function", "control", v.name, "loco", loco.String(), "function", nr, "on", on)
	v.record(Command{Kind: CommandLocoFunction, Binding: loco, Function: nr, On: on})
}

// Accessory implements Backend.
func (v *Virtual) Accessory(device Binding, state DeviceState, on bool) {
	v.logger.Debug("virtual accessory", "control", v.name, "device", device.String(), "state", state, "on", on)
	v.record(Command{Kind: CommandAccessory, Binding: device, State: state, On: on})
}

// Booster implements Backend.
func (v *Virtual) Booster(state BoosterState) {
	v.logger.Debug("virtual booster", "control", v.name, "state", state.String())
	v.record(Command{Kind: CommandBooster, Booster: state})
}

// Close implements Backend.
func (v *Virtual) Close() error { return nil }

// History returns a copy of the recorded commands, oldest first.
func (v *Virtual) History() []Command {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Command, len(v.history))
	copy(out, v.history)
	return out
}

// Last returns the most recent command of the given kind.
func (v *Virtual) Last(kind CommandKind) (Command, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := len(v.history) - 1; i >= 0; i-- {
		if v.history[i].Kind == kind {
			return v.history[i], true
		}
	}
	return Command{}, false
}
