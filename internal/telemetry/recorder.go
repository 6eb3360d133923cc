package telemetry

import (
	"sync"
	"time"

	"github.com/nerrad567/railcontrol-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/loco"
	"github.com/nerrad567/railcontrol-core/internal/manager"
)

// Writer is the subset of the InfluxDB client used by Recorder.
type Writer interface {
	WriteLocoSample(s influxdb.LocoSample, at time.Time)
	WriteFeedback(feedbackID uint32, occupied bool, at time.Time)
	WriteDestination(locoID, streetID, trackID uint32, at time.Time)
	WriteBooster(state string, at time.Time)
}

var _ Writer = (*influxdb.Client)(nil)

// Recorder writes manager events to a time-series store. Consecutive loco
// snapshots that do not change the recorded fields are skipped.
type Recorder struct {
	w Writer

	mu   sync.Mutex
	last map[layout.LocoID]influxdb.LocoSample
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w Writer) *Recorder {
	return &Recorder{
		w:    w,
		last: make(map[layout.LocoID]influxdb.LocoSample),
	}
}

// HandleEvent implements manager.Observer.
func (r *Recorder) HandleEvent(ev manager.Event) {
	switch p := ev.Payload.(type) {
	case loco.Snapshot:
		r.recordLoco(p, ev)
	case layout.FeedbackSnapshot:
		r.w.WriteFeedback(uint32(p.ID), p.Occupied, ev.Timestamp)
	case manager.DestinationReached:
		r.w.WriteDestination(uint32(p.Loco), uint32(p.Street), uint32(p.Track), ev.Timestamp)
	case manager.BoosterChanged:
		r.w.WriteBooster(p.State.String(), ev.Timestamp)
	}
}

func (r *Recorder) recordLoco(s loco.Snapshot, ev manager.Event) {
	sample := influxdb.LocoSample{
		LocoID: uint32(s.ID),
		Name:   s.Name,
		State:  s.State.String(),
		Speed:  uint16(s.Speed),
		Track:  uint32(s.TrackFrom),
		Street: uint32(s.StreetFirst),
	}

	r.mu.Lock()
	prev, seen := r.last[s.ID]
	r.last[s.ID] = sample
	r.mu.Unlock()

	if seen && prev == sample {
		return
	}
	r.w.WriteLocoSample(sample, ev.Timestamp)
}
