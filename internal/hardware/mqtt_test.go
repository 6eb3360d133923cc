package hardware

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockMQTTClient implements MQTTClient for testing.
type mockMQTTClient struct {
	mu        sync.Mutex
	published []mockPublish
	handlers  map[string]func(topic string, payload []byte) error
	connected bool
}

type mockPublish struct {
	Topic   string
	Payload []byte
	QoS     byte
}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte) error),
	}
}

func (m *mockMQTTClient) Publish(topic string, payload []byte, qos byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos})
	return nil
}

func (m *mockMQTTClient) Subscribe(topic string, _ byte, handler func(topic string, payload []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockMQTTClient) setConnected(c bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = c
}

func (m *mockMQTTClient) getPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// simulate delivers a message to the handler subscribed on pattern.
func (m *mockMQTTClient) simulate(pattern, topic string, payload []byte) error {
	m.mu.Lock()
	h := m.handlers[pattern]
	m.mu.Unlock()
	if h == nil {
		return errors.New("no handler")
	}
	return h(topic, payload)
}

func waitPublished(t *testing.T, m *mockMQTTClient, n int) []mockPublish {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if got := m.getPublished(); len(got) >= n {
			return got
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("published %d messages, want %d", len(m.getPublished()), n)
	return nil
}

func TestMQTTBackendPublishesCommands(t *testing.T) {
	client := newMockMQTTClient()
	b := NewMQTTBackend(4, client, nil)
	defer b.Close() //nolint:errcheck // Test cleanup

	loco := Binding{Control: 4, Protocol: "dcc", Address: 78}
	b.LocoSpeed(loco, 512)
	b.Accessory(Binding{Control: 4, Protocol: "dcc", Address: 12}, DeviceStateOn, true)

	published := waitPublished(t, client, 2)
	if published[0].Topic != "railcontrol/command/4" {
		t.Errorf("topic = %q, want railcontrol/command/4", published[0].Topic)
	}
	if published[0].QoS != commandQoS {
		t.Errorf("QoS = %d, want %d", published[0].QoS, commandQoS)
	}

	var speed CommandMessage
	if err := json.Unmarshal(published[0].Payload, &speed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if speed.Command != CommandLocoSpeed || speed.Address != 78 || speed.Protocol != "dcc" {
		t.Errorf("speed command = %+v", speed)
	}
	if speed.ID == "" {
		t.Error("command has no ID")
	}
	if v, _ := speed.Parameters["speed"].(float64); v != 512 {
		t.Errorf("speed parameter = %v, want 512", speed.Parameters["speed"])
	}

	var acc CommandMessage
	if err := json.Unmarshal(published[1].Payload, &acc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if acc.Parameters["state"] != "on" || acc.Parameters["on"] != true {
		t.Errorf("accessory parameters = %v", acc.Parameters)
	}
}

func TestMQTTBackendDropsWhileDisconnected(t *testing.T) {
	client := newMockMQTTClient()
	client.setConnected(false)
	b := NewMQTTBackend(1, client, nil)

	b.Booster(BoosterStop)
	time.Sleep(20 * time.Millisecond)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := len(client.getPublished()); n != 0 {
		t.Errorf("published %d messages while disconnected, want 0", n)
	}

	// Commands after Close are ignored.
	client.setConnected(true)
	b.Booster(BoosterGo)
	if n := len(client.getPublished()); n != 0 {
		t.Errorf("published %d messages after Close, want 0", n)
	}
}

type feedbackCall struct {
	control  ControlID
	pin      uint16
	occupied bool
}

type recordingSink struct {
	mu    sync.Mutex
	calls []feedbackCall
}

func (s *recordingSink) FeedbackPin(control ControlID, pin uint16, occupied bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, feedbackCall{control, pin, occupied})
	return nil
}

func TestSubscribeFeedback(t *testing.T) {
	client := newMockMQTTClient()
	sink := &recordingSink{}
	if err := SubscribeFeedback(client, sink, nil); err != nil {
		t.Fatalf("SubscribeFeedback() error = %v", err)
	}

	pattern := FeedbackSubscribeTopic()
	if err := client.simulate(pattern, "railcontrol/feedback/1/17", []byte("1")); err != nil {
		t.Fatalf("valid message error = %v", err)
	}
	if err := client.simulate(pattern, "railcontrol/feedback/2/3", []byte(`{"occupied":false}`)); err != nil {
		t.Fatalf("valid message error = %v", err)
	}
	if err := client.simulate(pattern, "railcontrol/feedback/x/3", []byte("1")); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("bad topic error = %v, want ErrInvalidMessage", err)
	}
	if err := client.simulate(pattern, "railcontrol/feedback/1/3", []byte("{")); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("bad payload error = %v, want ErrInvalidMessage", err)
	}

	want := []feedbackCall{{1, 17, true}, {2, 3, false}}
	if len(sink.calls) != len(want) {
		t.Fatalf("sink calls = %+v, want %+v", sink.calls, want)
	}
	for i := range want {
		if sink.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, sink.calls[i], want[i])
		}
	}
}
