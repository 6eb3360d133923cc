// Package telemetry mirrors manager events to external systems.
//
// Two observers are provided:
//
//   - Recorder writes locomotive samples, feedback transitions, completed
//     journeys and booster changes to a time-series store (InfluxDB).
//   - StatePublisher publishes the latest state of every object as retained
//     MQTT messages under railcontrol/core/..., plus destination events.
//
// Both are registered with manager.AddObserver and run on the manager's
// fan-out goroutine. The publisher hands messages to its own worker so a
// slow broker never holds up event delivery.
package telemetry
