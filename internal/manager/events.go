package manager

import (
	"time"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
)

// EventType names a state change published to observers.
type EventType string

// Event types.
const (
	EventLocoStateChanged       EventType = "loco.state_changed"
	EventLocoDestinationReached EventType = "loco.destination_reached"
	EventTrackStateChanged      EventType = "track.state_changed"
	EventStreetStateChanged     EventType = "street.state_changed"
	EventDeviceStateChanged     EventType = "device.state_changed"
	EventFeedbackStateChanged   EventType = "feedback.state_changed"
	EventBoosterChanged         EventType = "booster.changed"
)

// Event is one state change. Payload is the snapshot of the changed object
// (loco.Snapshot, layout.TrackSnapshot, ...) or one of the payload types below.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// DestinationReached is the payload of EventLocoDestinationReached.
type DestinationReached struct {
	Loco   layout.LocoID   `json:"loco"`
	Street layout.StreetID `json:"street"`
	Track  layout.TrackID  `json:"track"`
}

// BoosterChanged is the payload of EventBoosterChanged.
type BoosterChanged struct {
	State hardware.BoosterState `json:"state"`
}

// Observer receives events on the manager's fan-out goroutine. HandleEvent
// must not block for long; slow observers delay every other observer.
type Observer interface {
	HandleEvent(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

// HandleEvent implements Observer.
func (f ObserverFunc) HandleEvent(ev Event) { f(ev) }

// AddObserver registers an observer for all subsequent events.
func (m *Manager) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Dropped returns the number of events discarded because the buffer was full.
func (m *Manager) Dropped() uint64 {
	return m.dropped.Load()
}

// emit queues an event without blocking. It is called with entity locks held.
func (m *Manager) emit(t EventType, payload any) {
	ev := Event{Type: t, Timestamp: m.now().UTC(), Payload: payload}
	select {
	case m.events <- ev:
	default:
		if m.dropped.Add(1) == 1 {
			m.logger.Warn("event buffer full, dropping events", "type", t)
		}
	}
}

func (m *Manager) fanOut() {
	defer m.wg.Done()
	for {
		select {
		case ev := <-m.events:
			m.deliver(ev)
		case <-m.done:
			for {
				select {
				case ev := <-m.events:
					m.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) deliver(ev Event) {
	m.mu.RLock()
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("panic in event observer", "type", ev.Type, "panic", r)
				}
			}()
			o.HandleEvent(ev)
		}()
	}
}

// layoutChanged converts layout change notifications into events.
func (m *Manager) layoutChanged(c layout.Change) {
	switch c.Kind {
	case layout.ChangeTrack:
		if s, err := m.layout.Track(layout.TrackID(c.ID)); err == nil {
			m.emit(EventTrackStateChanged, s)
		}
	case layout.ChangeStreet:
		if s, err := m.layout.Street(layout.StreetID(c.ID)); err == nil {
			m.emit(EventStreetStateChanged, s)
		}
	case layout.ChangeDevice:
		if s, err := m.layout.Device(layout.DeviceID(c.ID)); err == nil {
			m.emit(EventDeviceStateChanged, s)
		}
	case layout.ChangeFeedback:
		if s, err := m.layout.Feedback(layout.FeedbackID(c.ID)); err == nil {
			m.emit(EventFeedbackStateChanged, s)
		}
	}
}
