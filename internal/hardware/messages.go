package hardware

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Topic prefix shared by every hardware bridge topic.
//
// Flat scheme: railcontrol/{category}/{control}[/{detail}]
const topicPrefix = "railcontrol"

// feedbackTopicParts is the number of parts in railcontrol/feedback/{control}/{pin}.
const feedbackTopicParts = 4

// CommandTopic returns the topic a bridge for the given control subscribes to.
//
// Example: railcontrol/command/1
func CommandTopic(control ControlID) string {
	return fmt.Sprintf("%s/command/%d", topicPrefix, control)
}

// FeedbackTopic returns the topic a bridge publishes occupancy for one pin on.
//
// Example: railcontrol/feedback/1/17
func FeedbackTopic(control ControlID, pin uint16) string {
	return fmt.Sprintf("%s/feedback/%d/%d", topicPrefix, control, pin)
}

// FeedbackSubscribeTopic returns the wildcard topic for all feedback pins.
func FeedbackSubscribeTopic() string {
	return topicPrefix + "/feedback/+/+"
}

// ParseFeedbackTopic extracts control and pin from a feedback topic.
func ParseFeedbackTopic(topic string) (ControlID, uint16, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != feedbackTopicParts || parts[0] != topicPrefix || parts[1] != "feedback" {
		return 0, 0, fmt.Errorf("%w: unexpected topic %q", ErrInvalidMessage, topic)
	}
	control, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: control in %q", ErrInvalidMessage, topic)
	}
	pin, err := strconv.ParseUint(parts[3], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: pin in %q", ErrInvalidMessage, topic)
	}
	return ControlID(control), uint16(pin), nil
}

// CommandMessage is sent from the core to a hardware bridge.
// Topic: railcontrol/command/{control}
type CommandMessage struct {
	// ID uniquely identifies this command in bridge logs.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC).
	Timestamp time.Time `json:"timestamp"`

	Command  CommandKind `json:"command"`
	Protocol Protocol    `json:"protocol,omitempty"`
	Address  uint16      `json:"address,omitempty"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"speed": 512} for loco_speed
	//   {"state": "on", "on": true} for accessory
	Parameters map[string]any `json:"parameters,omitempty"`
}

// FeedbackMessage is published by a bridge when a feedback pin changes.
// Topic: railcontrol/feedback/{control}/{pin}
type FeedbackMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Occupied  bool      `json:"occupied"`
}

// ParseFeedbackMessage decodes a feedback payload. Besides the JSON form,
// the bare payloads "1"/"0" and "true"/"false" are accepted for simple bridges.
func ParseFeedbackMessage(payload []byte) (FeedbackMessage, error) {
	trimmed := strings.TrimSpace(string(payload))
	switch trimmed {
	case "1", "true", "on":
		return FeedbackMessage{Occupied: true}, nil
	case "0", "false", "off":
		return FeedbackMessage{Occupied: false}, nil
	}

	var msg FeedbackMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return FeedbackMessage{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return msg, nil
}
