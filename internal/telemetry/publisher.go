package telemetry

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/railcontrol-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/loco"
	"github.com/nerrad567/railcontrol-core/internal/manager"
)

// Publisher constants.
const (
	// DefaultQueueSize is the outbound buffer of a StatePublisher.
	DefaultQueueSize = 512

	// stateQoS is used for all state and event publishes.
	stateQoS = 1
)

// Publisher is the subset of the MQTT client used by StatePublisher.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

var _ Publisher = (*mqtt.Client)(nil)

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// StatePublisher mirrors object state to retained MQTT topics. Messages are
// queued and published by a worker goroutine; when the queue is full new
// messages are dropped and counted.
type StatePublisher struct {
	pub    Publisher
	topics mqtt.Topics
	logger Logger

	queue   chan message
	dropped atomic.Uint64

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewStatePublisher creates and starts a publisher. A queueSize below one
// selects DefaultQueueSize.
func NewStatePublisher(pub Publisher, queueSize int, logger Logger) *StatePublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	p := &StatePublisher{
		pub:    pub,
		logger: logger,
		queue:  make(chan message, queueSize),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.publishLoop()
	return p
}

// HandleEvent implements manager.Observer.
func (p *StatePublisher) HandleEvent(ev manager.Event) {
	topic, retained := p.route(ev)
	if topic == "" {
		return
	}

	var body any = ev.Payload
	if !retained {
		body = ev
	}
	payload, err := json.Marshal(body)
	if err != nil {
		p.logger.Error("marshalling event", "type", ev.Type, "error", err)
		return
	}

	select {
	case p.queue <- message{topic: topic, payload: payload, retained: retained}:
	default:
		if p.dropped.Add(1) == 1 {
			p.logger.Warn("state publisher queue full, dropping messages", "topic", topic)
		}
	}
}

// route maps an event to its topic. State snapshots go to retained per-object
// topics; everything else is a plain event.
func (p *StatePublisher) route(ev manager.Event) (string, bool) {
	switch s := ev.Payload.(type) {
	case loco.Snapshot:
		return p.topics.CoreLocoState(uint32(s.ID)), true
	case layout.TrackSnapshot:
		return p.topics.CoreTrackState(uint32(s.ID)), true
	case layout.StreetSnapshot:
		return p.topics.CoreStreetState(uint32(s.ID)), true
	case layout.DeviceSnapshot:
		return p.topics.CoreDeviceState(uint32(s.ID)), true
	case layout.FeedbackSnapshot:
		return p.topics.CoreFeedbackState(uint32(s.ID)), true
	case manager.BoosterChanged:
		return p.topics.CoreBooster(), true
	case manager.DestinationReached:
		return p.topics.CoreEvent(string(ev.Type)), false
	}
	return "", false
}

// Dropped returns the number of messages discarded because the queue was full.
func (p *StatePublisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *StatePublisher) publishLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.queue:
			if err := p.pub.Publish(msg.topic, msg.payload, stateQoS, msg.retained); err != nil {
				p.logger.Warn("publishing state", "topic", msg.topic, "error", err)
				continue
			}
			p.logger.Debug("state published", "topic", msg.topic)
		}
	}
}

// Close stops the worker. Queued messages are discarded.
func (p *StatePublisher) Close() error {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
	return nil
}
