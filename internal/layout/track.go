package layout

import (
	"fmt"
	"sync"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/storage"
)

// Track is a block of rail that holds at most one train. The occupant is the
// locomotive that reserved it; it stays the owner until it releases the track.
//
// Thread Safety: All methods are safe for concurrent use.
type Track struct {
	ID     TrackID
	Name   string
	Length uint32 // millimetres

	mu            sync.Mutex
	state         LockState
	owner         LocoID
	blocked       bool
	locoDirection hardware.Orientation
}

// TrackSnapshot is a consistent copy of a track's state.
type TrackSnapshot struct {
	ID            TrackID              `json:"id"`
	Name          string               `json:"name"`
	Length        uint32               `json:"length"`
	State         LockState            `json:"state"`
	Owner         LocoID               `json:"owner"`
	Blocked       bool                 `json:"blocked"`
	LocoDirection hardware.Orientation `json:"loco_direction"`
}

// NewTrack creates a free track.
func NewTrack(id TrackID, name string, length uint32) *Track {
	return &Track{ID: id, Name: name, Length: length}
}

// Reserve claims a free, unblocked track for loco. It fails when the track
// is held by anyone, including loco itself.
func (t *Track) Reserve(loco LocoID) bool {
	if loco == LocoNone {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != LockFree || t.blocked {
		return false
	}
	t.state = LockReserved
	t.owner = loco
	return true
}

// Lock promotes loco's reservation to a lock.
func (t *Track) Lock(loco LocoID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != LockReserved || t.owner != loco {
		return false
	}
	t.state = LockLocked
	return true
}

// Release frees the track if loco owns it. It reports whether anything changed.
func (t *Track) Release(loco LocoID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == LockFree || t.owner != loco {
		return false
	}
	t.state = LockFree
	t.owner = LocoNone
	return true
}

// Place puts loco onto the track directly, as when a train is set on the rails
// by hand. It succeeds if the track is free or already held by loco.
func (t *Track) Place(loco LocoID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != LockFree && t.owner != loco {
		return false
	}
	t.state = LockLocked
	t.owner = loco
	return true
}

// Owner returns the occupying locomotive, or LocoNone.
func (t *Track) Owner() LocoID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.owner
}

// SetBlocked excludes the track from routing. Blocking does not evict an
// occupant.
func (t *Track) SetBlocked(blocked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blocked = blocked
}

// LocoDirection returns the side the occupant faces.
func (t *Track) LocoDirection() hardware.Orientation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locoDirection
}

// SetLocoDirection records the side the occupant faces.
func (t *Track) SetLocoDirection(o hardware.Orientation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locoDirection = o
}

// Snapshot returns a consistent copy of the track state.
func (t *Track) Snapshot() TrackSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TrackSnapshot{
		ID:            t.ID,
		Name:          t.Name,
		Length:        t.Length,
		State:         t.state,
		Owner:         t.owner,
		Blocked:       t.blocked,
		LocoDirection: t.locoDirection,
	}
}

// Serialize renders the track as a storage record.
func (t *Track) Serialize() *storage.Record {
	s := t.Snapshot()
	return storage.NewRecord().
		Set("objectType", "Track").
		SetUint("trackID", uint64(s.ID)).
		Set("name", s.Name).
		SetUint("length", uint64(s.Length)).
		SetBool("blocked", s.Blocked).
		Set("lockState", s.State.String()).
		SetUint("locoID", uint64(s.Owner)).
		Set("locoDirection", s.LocoDirection.String())
}

// DeserializeTrack rebuilds a track, including its lock state and occupant.
func DeserializeTrack(rec *storage.Record) (*Track, error) {
	if rec.String("objectType", "") != "Track" {
		return nil, fmt.Errorf("%w: not a track record", ErrInvalidObject)
	}
	id := TrackID(rec.Uint("trackID", 0))
	if id == TrackNone {
		return nil, fmt.Errorf("%w: track without id", ErrInvalidObject)
	}

	t := NewTrack(id, rec.String("name", ""), uint32(rec.Uint("length", 0)))
	t.blocked = rec.Bool("blocked", false)
	t.owner = LocoID(rec.Uint("locoID", 0))
	t.state = parseLockState(rec.String("lockState", "free"))
	if t.owner == LocoNone {
		t.state = LockFree
	} else if t.state == LockFree {
		t.state = LockLocked
	}
	dir, err := hardware.ParseOrientation(rec.String("locoDirection", "right"))
	if err != nil {
		return nil, err
	}
	t.locoDirection = dir
	return t, nil
}
