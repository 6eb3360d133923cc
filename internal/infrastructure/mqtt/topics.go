package mqtt

import "fmt"

// Topic prefixes of the railcontrol MQTT hierarchy.
//
// Hardware bridges use the flat scheme railcontrol/{category}/{control}/...
// (see hardware.CommandTopic and hardware.FeedbackTopic). Core topics carry
// the authoritative state published after the core has processed a change.
const (
	// TopicPrefix is the base for all railcontrol topics.
	TopicPrefix = "railcontrol"

	// TopicPrefixCore is the base for all core topics.
	TopicPrefixCore = "railcontrol/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "railcontrol/system"
)

// Topics provides builders for railcontrol MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.CoreLocoState(7)
//	// Returns: "railcontrol/core/loco/7/state"
type Topics struct{}

// =============================================================================
// Core Topics
// =============================================================================

// CoreLocoState returns the retained state topic of a locomotive.
//
// Example: railcontrol/core/loco/7/state
func (Topics) CoreLocoState(locoID uint32) string {
	return fmt.Sprintf("%s/loco/%d/state", TopicPrefixCore, locoID)
}

// CoreTrackState returns the retained state topic of a track.
//
// Example: railcontrol/core/track/3/state
func (Topics) CoreTrackState(trackID uint32) string {
	return fmt.Sprintf("%s/track/%d/state", TopicPrefixCore, trackID)
}

// CoreStreetState returns the retained state topic of a street.
//
// Example: railcontrol/core/street/10/state
func (Topics) CoreStreetState(streetID uint32) string {
	return fmt.Sprintf("%s/street/%d/state", TopicPrefixCore, streetID)
}

// CoreDeviceState returns the retained state topic of a switch or signal.
//
// Example: railcontrol/core/device/5/state
func (Topics) CoreDeviceState(deviceID uint32) string {
	return fmt.Sprintf("%s/device/%d/state", TopicPrefixCore, deviceID)
}

// CoreFeedbackState returns the retained state topic of a feedback.
//
// Example: railcontrol/core/feedback/21/state
func (Topics) CoreFeedbackState(feedbackID uint32) string {
	return fmt.Sprintf("%s/feedback/%d/state", TopicPrefixCore, feedbackID)
}

// CoreBooster returns the retained booster state topic.
//
// Example: railcontrol/core/booster
func (Topics) CoreBooster() string {
	return fmt.Sprintf("%s/booster", TopicPrefixCore)
}

// CoreEvent returns the topic for core events. Dots in the event type are
// kept since they are legal in topic levels.
//
// Example: railcontrol/core/event/loco.destination_reached
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: railcontrol/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllCoreLocoStates returns a pattern matching all locomotive states.
//
// Pattern: railcontrol/core/loco/+/state
func (Topics) AllCoreLocoStates() string {
	return fmt.Sprintf("%s/loco/+/state", TopicPrefixCore)
}

// AllCoreEvents returns a pattern matching all core events.
//
// Pattern: railcontrol/core/event/+
func (Topics) AllCoreEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixCore)
}

// AllTopics returns a pattern matching all railcontrol topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: railcontrol/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
