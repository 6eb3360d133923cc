package layout

import (
	"fmt"
	"sync"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/storage"
)

// Feedback is an occupancy contact on a control's input pin.
//
// Thread Safety: All methods are safe for concurrent use.
type Feedback struct {
	ID       FeedbackID
	Name     string
	Control  hardware.ControlID
	Pin      uint16
	Inverted bool

	mu       sync.Mutex
	occupied bool
	loco     LocoID
}

// FeedbackSnapshot is a consistent copy of a feedback's state.
type FeedbackSnapshot struct {
	ID       FeedbackID         `json:"id"`
	Name     string             `json:"name"`
	Control  hardware.ControlID `json:"control"`
	Pin      uint16             `json:"pin"`
	Inverted bool               `json:"inverted"`
	Occupied bool               `json:"occupied"`
	Loco     LocoID             `json:"loco"`
}

// NewFeedback creates a free feedback.
func NewFeedback(id FeedbackID, name string, control hardware.ControlID, pin uint16, inverted bool) *Feedback {
	return &Feedback{ID: id, Name: name, Control: control, Pin: pin, Inverted: inverted}
}

// setRaw applies a raw pin reading. The logical state is raw XOR inverted.
func (f *Feedback) setRaw(raw bool) (occupied, changed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	occupied = raw != f.Inverted
	changed = occupied != f.occupied
	f.occupied = occupied
	if !occupied {
		f.loco = LocoNone
	}
	return occupied, changed
}

// setLoco records which locomotive was expected at this contact.
func (f *Feedback) setLoco(loco LocoID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loco = loco
}

// Snapshot returns a consistent copy of the feedback state.
func (f *Feedback) Snapshot() FeedbackSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FeedbackSnapshot{
		ID:       f.ID,
		Name:     f.Name,
		Control:  f.Control,
		Pin:      f.Pin,
		Inverted: f.Inverted,
		Occupied: f.occupied,
		Loco:     f.loco,
	}
}

// Serialize renders the feedback as a storage record.
func (f *Feedback) Serialize() *storage.Record {
	s := f.Snapshot()
	return storage.NewRecord().
		Set("objectType", "Feedback").
		SetUint("feedbackID", uint64(s.ID)).
		Set("name", s.Name).
		SetUint("controlID", uint64(s.Control)).
		SetUint("pin", uint64(s.Pin)).
		SetBool("inverted", s.Inverted)
}

// DeserializeFeedback rebuilds a feedback from a storage record. Occupancy
// is not persisted; it comes back from the hardware.
func DeserializeFeedback(rec *storage.Record) (*Feedback, error) {
	if rec.String("objectType", "") != "Feedback" {
		return nil, fmt.Errorf("%w: not a feedback record", ErrInvalidObject)
	}
	id := FeedbackID(rec.Uint("feedbackID", 0))
	if id == FeedbackNone {
		return nil, fmt.Errorf("%w: feedback without id", ErrInvalidObject)
	}
	return NewFeedback(id,
		rec.String("name", ""),
		hardware.ControlID(rec.Uint("controlID", 0)),
		uint16(rec.Uint("pin", 0)),
		rec.Bool("inverted", false),
	), nil
}
