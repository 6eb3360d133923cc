package layout

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/storage"
)

// Relation is one device setting a street needs, in acquisition order.
type Relation struct {
	Device   DeviceID             `json:"device" yaml:"device"`
	State    hardware.DeviceState `json:"state" yaml:"state"`
	Hard     bool                 `json:"hard" yaml:"hard"`
	Priority uint8                `json:"priority" yaml:"priority"`
}

// Street is a route from one track to another over a set of devices.
// FromDirection is the side of the source track the train leaves through;
// ToDirection is the side of the destination track it enters through.
//
// Thread Safety: configuration fields are immutable once the street is added
// to a Layout; the lock state is guarded by the street's mutex.
type Street struct {
	ID            StreetID
	Name          string
	FromTrack     TrackID
	FromDirection hardware.Orientation
	ToTrack       TrackID
	ToDirection   hardware.Orientation
	Relations     []Relation
	Triggers      Triggers
	Automode      bool
	MinLength     uint32
	MaxLength     uint32 // 0 means unlimited
	Commuter      Commuter

	mu       sync.Mutex
	state    LockState
	owner    LocoID
	lastUsed time.Time
}

// StreetSnapshot is a consistent copy of a street's configuration and state.
type StreetSnapshot struct {
	ID            StreetID             `json:"id"`
	Name          string               `json:"name"`
	FromTrack     TrackID              `json:"from_track"`
	FromDirection hardware.Orientation `json:"from_direction"`
	ToTrack       TrackID              `json:"to_track"`
	ToDirection   hardware.Orientation `json:"to_direction"`
	Relations     []Relation           `json:"relations"`
	Triggers      Triggers             `json:"triggers"`
	Automode      bool                 `json:"automode"`
	MinLength     uint32               `json:"min_length"`
	MaxLength     uint32               `json:"max_length"`
	Commuter      Commuter             `json:"commuter"`
	State         LockState            `json:"state"`
	Owner         LocoID               `json:"owner"`
	LastUsed      time.Time            `json:"last_used"`
}

// Fits reports whether a train of the given length and kind may use the street.
func (s StreetSnapshot) Fits(length uint32, commuter bool) bool {
	if length < s.MinLength {
		return false
	}
	if s.MaxLength > 0 && length > s.MaxLength {
		return false
	}
	return s.Commuter.Allows(commuter)
}

func (s *Street) validate() error {
	if s.ID == StreetNone {
		return fmt.Errorf("%w: street without id", ErrInvalidObject)
	}
	if s.FromTrack == TrackNone || s.ToTrack == TrackNone {
		return fmt.Errorf("%w: street %d needs from and to track", ErrInvalidObject, s.ID)
	}
	if s.FromTrack == s.ToTrack {
		return fmt.Errorf("%w: street %d starts and ends on track %d", ErrInvalidObject, s.ID, s.FromTrack)
	}
	if s.MaxLength > 0 && s.MaxLength < s.MinLength {
		return fmt.Errorf("%w: street %d max length below min length", ErrInvalidObject, s.ID)
	}
	return nil
}

func (s *Street) reserve(loco LocoID) bool {
	if loco == LocoNone {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != LockFree {
		return false
	}
	s.state = LockReserved
	s.owner = loco
	return true
}

func (s *Street) lock(loco LocoID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != LockReserved || s.owner != loco {
		return false
	}
	s.state = LockLocked
	return true
}

func (s *Street) release(loco LocoID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == LockFree || s.owner != loco {
		return false
	}
	s.state = LockFree
	s.owner = LocoNone
	return true
}

func (s *Street) lockedBy(loco LocoID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == LockLocked && s.owner == loco
}

func (s *Street) markUsed(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = at
}

// Snapshot returns a consistent copy of the street.
func (s *Street) Snapshot() StreetSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	relations := make([]Relation, len(s.Relations))
	copy(relations, s.Relations)
	return StreetSnapshot{
		ID:            s.ID,
		Name:          s.Name,
		FromTrack:     s.FromTrack,
		FromDirection: s.FromDirection,
		ToTrack:       s.ToTrack,
		ToDirection:   s.ToDirection,
		Relations:     relations,
		Triggers:      s.Triggers,
		Automode:      s.Automode,
		MinLength:     s.MinLength,
		MaxLength:     s.MaxLength,
		Commuter:      s.Commuter,
		State:         s.state,
		Owner:         s.owner,
		LastUsed:      s.lastUsed,
	}
}

// Serialize renders the street as a storage record. Relations are returned
// separately and stored in order.
func (s *Street) Serialize() (*storage.Record, []*storage.Record) {
	snap := s.Snapshot()
	rec := storage.NewRecord().
		Set("objectType", "Street").
		SetUint("streetID", uint64(snap.ID)).
		Set("name", snap.Name).
		SetUint("fromTrack", uint64(snap.FromTrack)).
		Set("fromDirection", snap.FromDirection.String()).
		SetUint("toTrack", uint64(snap.ToTrack)).
		Set("toDirection", snap.ToDirection.String()).
		SetUint("feedbackIdReduced", uint64(snap.Triggers.Reduced)).
		SetUint("feedbackIdCreep", uint64(snap.Triggers.Creep)).
		SetUint("feedbackIdStop", uint64(snap.Triggers.Stop)).
		SetUint("feedbackIdOver", uint64(snap.Triggers.Over)).
		SetBool("automode", snap.Automode).
		SetUint("minTrainLength", uint64(snap.MinLength)).
		SetUint("maxTrainLength", uint64(snap.MaxLength)).
		Set("commuter", snap.Commuter.String()).
		Set("lockState", snap.State.String()).
		SetUint("locoID", uint64(snap.Owner)).
		SetInt("lastUsed", lastUsedUnix(snap.LastUsed))

	relations := make([]*storage.Record, 0, len(snap.Relations))
	for _, r := range snap.Relations {
		hard := "soft"
		if r.Hard {
			hard = "hard"
		}
		relations = append(relations, storage.NewRecord().
			Set("objectType", "Relation").
			SetUint("deviceID", uint64(r.Device)).
			SetUint("state", uint64(r.State)).
			Set("lock", hard).
			SetUint("priority", uint64(r.Priority)))
	}
	return rec, relations
}

func lastUsedUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// DeserializeStreet rebuilds a street and its relations.
func DeserializeStreet(rec *storage.Record, relations []*storage.Record) (*Street, error) {
	if rec.String("objectType", "") != "Street" {
		return nil, fmt.Errorf("%w: not a street record", ErrInvalidObject)
	}
	fromDir, err := hardware.ParseOrientation(rec.String("fromDirection", "right"))
	if err != nil {
		return nil, err
	}
	toDir, err := hardware.ParseOrientation(rec.String("toDirection", "right"))
	if err != nil {
		return nil, err
	}
	commuter, err := ParseCommuter(rec.String("commuter", "any"))
	if err != nil {
		return nil, err
	}

	s := &Street{
		ID:            StreetID(rec.Uint("streetID", 0)),
		Name:          rec.String("name", ""),
		FromTrack:     TrackID(rec.Uint("fromTrack", 0)),
		FromDirection: fromDir,
		ToTrack:       TrackID(rec.Uint("toTrack", 0)),
		ToDirection:   toDir,
		Triggers: Triggers{
			Reduced: FeedbackID(rec.Uint("feedbackIdReduced", 0)),
			Creep:   FeedbackID(rec.Uint("feedbackIdCreep", 0)),
			Stop:    FeedbackID(rec.Uint("feedbackIdStop", 0)),
			Over:    FeedbackID(rec.Uint("feedbackIdOver", 0)),
		},
		Automode:  rec.Bool("automode", false),
		MinLength: uint32(rec.Uint("minTrainLength", 0)),
		MaxLength: uint32(rec.Uint("maxTrainLength", 0)),
		Commuter:  commuter,
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	s.owner = LocoID(rec.Uint("locoID", 0))
	s.state = parseLockState(rec.String("lockState", "free"))
	if s.owner == LocoNone {
		s.state = LockFree
	}
	if ts := rec.Int("lastUsed", 0); ts > 0 {
		s.lastUsed = time.Unix(ts, 0)
	}

	for i, r := range relations {
		device := DeviceID(r.Uint("deviceID", 0))
		if device == DeviceNone {
			return nil, fmt.Errorf("%w: street %d relation %d has no device", ErrInvalidObject, s.ID, i)
		}
		s.Relations = append(s.Relations, Relation{
			Device:   device,
			State:    hardware.DeviceState(r.Uint("state", 0)),
			Hard:     r.String("lock", "hard") == "hard",
			Priority: uint8(r.Uint("priority", 0)),
		})
	}
	return s, nil
}
