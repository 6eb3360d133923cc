package hardware

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Bridge operation constants.
const (
	// defaultQueueSize is the outbound command buffer of an MQTT backend.
	defaultQueueSize = 256

	// commandQoS is used for all command publishes.
	commandQoS = 1
)

// MQTTClient is the interface for MQTT operations.
// The infrastructure MQTT client satisfies it through a small adapter in the
// command that wires the controls.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// MQTTBackend forwards commands as JSON messages to an external bridge
// process for one control. Publishing happens on a worker goroutine so
// callers never wait on the broker.
type MQTTBackend struct {
	control ControlID
	client  MQTTClient
	queue   chan CommandMessage
	logger  Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewMQTTBackend creates and starts an MQTT backend for control.
func NewMQTTBackend(control ControlID, client MQTTClient, logger Logger) *MQTTBackend {
	if logger == nil {
		logger = noopLogger{}
	}
	b := &MQTTBackend{
		control: control,
		client:  client,
		queue:   make(chan CommandMessage, defaultQueueSize),
		logger:  logger,
		done:    make(chan struct{}),
	}
	b.wg.Add(1)
	go b.publishLoop()
	return b
}

// Name implements Backend.
func (b *MQTTBackend) Name() string { return "mqtt" }

// Capabilities implements Backend.
func (b *MQTTBackend) Capabilities() Capability {
	return CapLocoSpeed | CapLocoOrientation | CapLocoFunction | CapAccessory | CapBooster | CapFeedback
}

// LocoSpeed implements Backend.
func (b *MQTTBackend) LocoSpeed(loco Binding, speed Speed) {
	b.enqueue(CommandLocoSpeed, loco, map[string]any{"speed": speed})
}

// LocoOrientation implements Backend.
func (b *MQTTBackend) LocoOrientation(loco Binding, orientation Orientation) {
	b.enqueue(CommandLocoOrientation, loco, map[string]any{"orientation": orientation.String()})
}

// LocoFunction implements Backend.
func (b *MQTTBackend) LocoFunction(loco Binding, nr uint8, on bool) {
	b.enqueue(CommandLocoFunction, loco, map[string]any{"function": nr, "on": on})
}

// Accessory implements Backend.
func (b *MQTTBackend) Accessory(device Binding, state DeviceState, on bool) {
	b.enqueue(CommandAccessory, device, map[string]any{"state": state, "on": on})
}

// Booster implements Backend.
func (b *MQTTBackend) Booster(state BoosterState) {
	b.enqueue(CommandBooster, Binding{Control: b.control}, map[string]any{"state": state.String()})
}

func (b *MQTTBackend) enqueue(kind CommandKind, target Binding, params map[string]any) {
	msg := CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Command:    kind,
		Protocol:   target.Protocol,
		Address:    target.Address,
		Parameters: params,
	}

	select {
	case <-b.done:
		return
	default:
	}

	select {
	case b.queue <- msg:
	default:
		b.logger.Warn("mqtt command queue full, command dropped",
			"control", b.control,
			"command", kind,
			"target", target.String(),
		)
	}
}

func (b *MQTTBackend) publishLoop() {
	defer b.wg.Done()
	topic := CommandTopic(b.control)

	for {
		select {
		case <-b.done:
			return
		case msg := <-b.queue:
			b.publish(topic, msg)
		}
	}
}

func (b *MQTTBackend) publish(topic string, msg CommandMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("marshalling command", "command", msg.Command, "error", err)
		return
	}
	if !b.client.IsConnected() {
		b.logger.Warn("mqtt not connected, command dropped", "command", msg.Command, "id", msg.ID)
		return
	}
	if err := b.client.Publish(topic, payload, commandQoS, false); err != nil {
		b.logger.Error("publishing command", "topic", topic, "command", msg.Command, "error", err)
		return
	}
	b.logger.Debug("command published", "topic", topic, "command", msg.Command, "id", msg.ID)
}

// Close stops the publish worker. Queued commands are discarded.
func (b *MQTTBackend) Close() error {
	b.stopOnce.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
	return nil
}

// FeedbackSink receives decoded feedback pin changes.
type FeedbackSink interface {
	FeedbackPin(control ControlID, pin uint16, occupied bool) error
}

// SubscribeFeedback subscribes to all feedback pins and forwards every
// message to sink. Errors from the sink are logged, not retried.
func SubscribeFeedback(client MQTTClient, sink FeedbackSink, logger Logger) error {
	if logger == nil {
		logger = noopLogger{}
	}
	return client.Subscribe(FeedbackSubscribeTopic(), commandQoS, func(topic string, payload []byte) error {
		control, pin, err := ParseFeedbackTopic(topic)
		if err != nil {
			logger.Warn("ignoring feedback message", "topic", topic, "error", err)
			return err
		}
		msg, err := ParseFeedbackMessage(payload)
		if err != nil {
			logger.Warn("ignoring feedback message", "topic", topic, "error", err)
			return err
		}
		if err := sink.FeedbackPin(control, pin, msg.Occupied); err != nil {
			logger.Debug("feedback not applied", "control", control, "pin", pin, "error", err)
			return err
		}
		return nil
	})
}
