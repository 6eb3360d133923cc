package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the railcontrol core.
const (
	MeasurementLoco        = "loco"
	MeasurementFeedback    = "feedback"
	MeasurementDestination = "destination"
	MeasurementBooster     = "booster"
)

// LocoSample is one observation of a locomotive.
type LocoSample struct {
	LocoID uint32
	Name   string
	State  string
	Speed  uint16
	Track  uint32
	Street uint32
}

// WriteLocoSample records the speed, automode state and position of a loco.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteLocoSample(influxdb.LocoSample{LocoID: 7, State: "running", Speed: 512, Track: 3}, time.Now())
func (c *Client) WriteLocoSample(s LocoSample, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(locoPoint(s, at))
}

// WriteFeedback records an occupancy transition.
func (c *Client) WriteFeedback(feedbackID uint32, occupied bool, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(feedbackPoint(feedbackID, occupied, at))
}

// WriteDestination records a completed journey: the loco reached track over
// street.
func (c *Client) WriteDestination(locoID, streetID, trackID uint32, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(destinationPoint(locoID, streetID, trackID, at))
}

// WriteBooster records a booster change ("go" or "stop").
func (c *Client) WriteBooster(state string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementBooster,
		nil,
		map[string]interface{}{"on": state == "go"},
		at,
	))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"locos_running": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

// locoPoint builds the loco measurement. Identity is tagged; position and
// speed are fields so that a moving loco does not create new series.
func locoPoint(s LocoSample, at time.Time) *write.Point {
	tags := map[string]string{
		"loco_id": strconv.FormatUint(uint64(s.LocoID), 10),
		"state":   s.State,
	}
	if s.Name != "" {
		tags["name"] = s.Name
	}
	return write.NewPoint(
		MeasurementLoco,
		tags,
		map[string]interface{}{
			"speed":  int64(s.Speed),
			"track":  int64(s.Track),
			"street": int64(s.Street),
		},
		at,
	)
}

func feedbackPoint(feedbackID uint32, occupied bool, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementFeedback,
		map[string]string{"feedback_id": strconv.FormatUint(uint64(feedbackID), 10)},
		map[string]interface{}{"occupied": occupied},
		at,
	)
}

func destinationPoint(locoID, streetID, trackID uint32, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDestination,
		map[string]string{"loco_id": strconv.FormatUint(uint64(locoID), 10)},
		map[string]interface{}{
			"street": int64(streetID),
			"track":  int64(trackID),
		},
		at,
	)
}
