package layout

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
)

// ChangeKind identifies the kind of object a Change refers to.
type ChangeKind string

// Change kinds.
const (
	ChangeTrack    ChangeKind = "track"
	ChangeStreet   ChangeKind = "street"
	ChangeDevice   ChangeKind = "device"
	ChangeFeedback ChangeKind = "feedback"
)

// Change reports that the state of one object changed.
type Change struct {
	Kind ChangeKind
	ID   uint32
}

// Observer receives state changes. It is called synchronously after the
// change and must not block.
type Observer func(Change)

// Layout owns the tables of tracks, streets, devices and feedbacks and
// implements the reservation protocol across them. Objects are referenced by
// ID; callers never hold pointers into the tables.
//
// The table lock only guards membership. Each object carries its own mutex,
// and a street commit acquires its resources one at a time in a fixed order
// (street, relations in sequence, destination track), rolling back on the
// first conflict instead of blocking.
//
// Thread Safety: All methods are safe for concurrent use.
type Layout struct {
	mu        sync.RWMutex
	tracks    map[TrackID]*Track
	streets   map[StreetID]*Street
	devices   map[DeviceID]*Device
	feedbacks map[FeedbackID]*Feedback

	dispatcher hardware.Dispatcher
	observer   Observer
	logger     Logger
	now        func() time.Time
}

// New creates an empty layout that sends device commands to dispatcher.
func New(dispatcher hardware.Dispatcher) *Layout {
	return &Layout{
		tracks:     make(map[TrackID]*Track),
		streets:    make(map[StreetID]*Street),
		devices:    make(map[DeviceID]*Device),
		feedbacks:  make(map[FeedbackID]*Feedback),
		dispatcher: dispatcher,
		logger:     noopLogger{},
		now:        time.Now,
	}
}

// SetLogger sets the logger for the layout.
func (l *Layout) SetLogger(logger Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	l.logger = logger
}

// SetObserver installs the change observer. Pass nil to remove it.
func (l *Layout) SetObserver(observer Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = observer
}

func (l *Layout) notify(kind ChangeKind, id uint32) {
	l.mu.RLock()
	observer := l.observer
	l.mu.RUnlock()
	if observer != nil {
		observer(Change{Kind: kind, ID: id})
	}
}

func (l *Layout) log() Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.logger
}

// --- Table management ---

// AddTrack adds a track.
func (l *Layout) AddTrack(t *Track) error {
	if t == nil || t.ID == TrackNone {
		return fmt.Errorf("%w: track without id", ErrInvalidObject)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.tracks[t.ID]; exists {
		return fmt.Errorf("%w: track %d", ErrExists, t.ID)
	}
	l.tracks[t.ID] = t
	return nil
}

// AddDevice adds a device.
func (l *Layout) AddDevice(d *Device) error {
	if d == nil || d.ID == DeviceNone {
		return fmt.Errorf("%w: device without id", ErrInvalidObject)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.devices[d.ID]; exists {
		return fmt.Errorf("%w: device %d", ErrExists, d.ID)
	}
	l.devices[d.ID] = d
	return nil
}

// AddFeedback adds a feedback. Two feedbacks may not share a control pin.
func (l *Layout) AddFeedback(f *Feedback) error {
	if f == nil || f.ID == FeedbackNone {
		return fmt.Errorf("%w: feedback without id", ErrInvalidObject)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.feedbacks[f.ID]; exists {
		return fmt.Errorf("%w: feedback %d", ErrExists, f.ID)
	}
	for _, other := range l.feedbacks {
		if other.Control == f.Control && other.Pin == f.Pin {
			return fmt.Errorf("%w: control %d pin %d already bound to feedback %d",
				ErrExists, f.Control, f.Pin, other.ID)
		}
	}
	l.feedbacks[f.ID] = f
	return nil
}

// AddStreet adds a street. Its tracks, devices and trigger feedbacks must
// already exist.
func (l *Layout) AddStreet(s *Street) error {
	if s == nil {
		return fmt.Errorf("%w: nil street", ErrInvalidObject)
	}
	if err := s.validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.streets[s.ID]; exists {
		return fmt.Errorf("%w: street %d", ErrExists, s.ID)
	}
	for _, id := range []TrackID{s.FromTrack, s.ToTrack} {
		if _, ok := l.tracks[id]; !ok {
			return fmt.Errorf("%w: street %d references track %d", ErrTrackNotFound, s.ID, id)
		}
	}
	for _, r := range s.Relations {
		if _, ok := l.devices[r.Device]; !ok {
			return fmt.Errorf("%w: street %d references device %d", ErrDeviceNotFound, s.ID, r.Device)
		}
	}
	for _, id := range []FeedbackID{s.Triggers.Reduced, s.Triggers.Creep, s.Triggers.Stop, s.Triggers.Over} {
		if id == FeedbackNone {
			continue
		}
		if _, ok := l.feedbacks[id]; !ok {
			return fmt.Errorf("%w: street %d references feedback %d", ErrFeedbackNotFound, s.ID, id)
		}
	}
	l.streets[s.ID] = s
	return nil
}

// RemoveTrack deletes a track that is free and not used by any street.
func (l *Layout) RemoveTrack(id TrackID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tracks[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTrackNotFound, id)
	}
	if t.Owner() != LocoNone {
		return fmt.Errorf("%w: track %d is held by loco %d", ErrInUse, id, t.Owner())
	}
	for _, s := range l.streets {
		if s.FromTrack == id || s.ToTrack == id {
			return fmt.Errorf("%w: track %d is used by street %d", ErrInUse, id, s.ID)
		}
	}
	delete(l.tracks, id)
	return nil
}

// RemoveStreet deletes a street that is not reserved.
func (l *Layout) RemoveStreet(id StreetID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.streets[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrStreetNotFound, id)
	}
	if snap := s.Snapshot(); snap.State != LockFree {
		return fmt.Errorf("%w: street %d is held by loco %d", ErrInUse, id, snap.Owner)
	}
	delete(l.streets, id)
	return nil
}

// RemoveDevice deletes a device that is free and not used by any street.
func (l *Layout) RemoveDevice(id DeviceID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.devices[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrDeviceNotFound, id)
	}
	if snap := d.Snapshot(); snap.Lock != DeviceFree {
		return fmt.Errorf("%w: device %d is held by loco %d", ErrInUse, id, snap.Owner)
	}
	for _, s := range l.streets {
		for _, r := range s.Relations {
			if r.Device == id {
				return fmt.Errorf("%w: device %d is used by street %d", ErrInUse, id, s.ID)
			}
		}
	}
	delete(l.devices, id)
	return nil
}

// RemoveFeedback deletes a feedback that no street uses as a trigger.
func (l *Layout) RemoveFeedback(id FeedbackID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.feedbacks[id]; !ok {
		return fmt.Errorf("%w: %d", ErrFeedbackNotFound, id)
	}
	for _, s := range l.streets {
		tr := s.Triggers
		if tr.Reduced == id || tr.Creep == id || tr.Stop == id || tr.Over == id {
			return fmt.Errorf("%w: feedback %d is used by street %d", ErrInUse, id, s.ID)
		}
	}
	delete(l.feedbacks, id)
	return nil
}

// --- Lookups ---

func (l *Layout) track(id TrackID) *Track {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tracks[id]
}

func (l *Layout) street(id StreetID) *Street {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.streets[id]
}

func (l *Layout) device(id DeviceID) *Device {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.devices[id]
}

func (l *Layout) feedback(id FeedbackID) *Feedback {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.feedbacks[id]
}

// Track returns a snapshot of one track.
func (l *Layout) Track(id TrackID) (TrackSnapshot, error) {
	t := l.track(id)
	if t == nil {
		return TrackSnapshot{}, fmt.Errorf("%w: %d", ErrTrackNotFound, id)
	}
	return t.Snapshot(), nil
}

// Street returns a snapshot of one street.
func (l *Layout) Street(id StreetID) (StreetSnapshot, error) {
	s := l.street(id)
	if s == nil {
		return StreetSnapshot{}, fmt.Errorf("%w: %d", ErrStreetNotFound, id)
	}
	return s.Snapshot(), nil
}

// Device returns a snapshot of one device.
func (l *Layout) Device(id DeviceID) (DeviceSnapshot, error) {
	d := l.device(id)
	if d == nil {
		return DeviceSnapshot{}, fmt.Errorf("%w: %d", ErrDeviceNotFound, id)
	}
	return d.Snapshot(), nil
}

// Feedback returns a snapshot of one feedback.
func (l *Layout) Feedback(id FeedbackID) (FeedbackSnapshot, error) {
	f := l.feedback(id)
	if f == nil {
		return FeedbackSnapshot{}, fmt.Errorf("%w: %d", ErrFeedbackNotFound, id)
	}
	return f.Snapshot(), nil
}

// Tracks returns snapshots of all tracks ordered by ID.
func (l *Layout) Tracks() []TrackSnapshot {
	l.mu.RLock()
	out := make([]TrackSnapshot, 0, len(l.tracks))
	for _, t := range l.tracks {
		out = append(out, t.Snapshot())
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Streets returns snapshots of all streets ordered by ID.
func (l *Layout) Streets() []StreetSnapshot {
	l.mu.RLock()
	out := make([]StreetSnapshot, 0, len(l.streets))
	for _, s := range l.streets {
		out = append(out, s.Snapshot())
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Devices returns snapshots of all devices ordered by ID.
func (l *Layout) Devices() []DeviceSnapshot {
	l.mu.RLock()
	out := make([]DeviceSnapshot, 0, len(l.devices))
	for _, d := range l.devices {
		out = append(out, d.Snapshot())
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Feedbacks returns snapshots of all feedbacks ordered by ID.
func (l *Layout) Feedbacks() []FeedbackSnapshot {
	l.mu.RLock()
	out := make([]FeedbackSnapshot, 0, len(l.feedbacks))
	for _, f := range l.feedbacks {
		out = append(out, f.Snapshot())
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StreetsFrom returns the streets starting on track, ordered by ID.
func (l *Layout) StreetsFrom(track TrackID) []StreetSnapshot {
	l.mu.RLock()
	out := make([]StreetSnapshot, 0)
	for _, s := range l.streets {
		if s.FromTrack == track {
			out = append(out, s.Snapshot())
		}
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- Track reservation ---

// ReserveTrack reserves a free track for loco.
func (l *Layout) ReserveTrack(id TrackID, loco LocoID) bool {
	t := l.track(id)
	if t == nil || !t.Reserve(loco) {
		return false
	}
	l.notify(ChangeTrack, uint32(id))
	return true
}

// LockTrack promotes loco's reservation of a track to a lock.
func (l *Layout) LockTrack(id TrackID, loco LocoID) bool {
	t := l.track(id)
	if t == nil || !t.Lock(loco) {
		return false
	}
	l.notify(ChangeTrack, uint32(id))
	return true
}

// ReleaseTrack frees a track held by loco. Releasing a track loco does not
// hold is a no-op that returns false.
func (l *Layout) ReleaseTrack(id TrackID, loco LocoID) bool {
	t := l.track(id)
	if t == nil || !t.Release(loco) {
		return false
	}
	l.notify(ChangeTrack, uint32(id))
	return true
}

// PlaceLoco puts loco onto a track that is free or already its own.
func (l *Layout) PlaceLoco(id TrackID, loco LocoID) error {
	t := l.track(id)
	if t == nil {
		return fmt.Errorf("%w: %d", ErrTrackNotFound, id)
	}
	if loco == LocoNone {
		return fmt.Errorf("%w: no loco", ErrInvalidValue)
	}
	if !t.Place(loco) {
		return fmt.Errorf("%w: track %d is held by loco %d", ErrInUse, id, t.Owner())
	}
	l.notify(ChangeTrack, uint32(id))
	return nil
}

// TrackOwner returns the loco holding a track, or LocoNone.
func (l *Layout) TrackOwner(id TrackID) LocoID {
	t := l.track(id)
	if t == nil {
		return LocoNone
	}
	return t.Owner()
}

// TrackDirection returns the side the occupant of a track faces.
func (l *Layout) TrackDirection(id TrackID) hardware.Orientation {
	t := l.track(id)
	if t == nil {
		return hardware.OrientationRight
	}
	return t.LocoDirection()
}

// SetTrackDirection records the side the occupant of a track faces.
func (l *Layout) SetTrackDirection(id TrackID, o hardware.Orientation) error {
	t := l.track(id)
	if t == nil {
		return fmt.Errorf("%w: %d", ErrTrackNotFound, id)
	}
	t.SetLocoDirection(o)
	l.notify(ChangeTrack, uint32(id))
	return nil
}

// BlockTrack blocks or unblocks a track for new reservations.
func (l *Layout) BlockTrack(id TrackID, blocked bool) error {
	t := l.track(id)
	if t == nil {
		return fmt.Errorf("%w: %d", ErrTrackNotFound, id)
	}
	t.SetBlocked(blocked)
	l.notify(ChangeTrack, uint32(id))
	return nil
}

// --- Street reservation ---

// ReserveStreet reserves a street, every relation device in order, and the
// destination track for loco. Either all of them are reserved or none is.
func (l *Layout) ReserveStreet(id StreetID, loco LocoID) bool {
	s := l.street(id)
	if s == nil {
		return false
	}
	if !s.reserve(loco) {
		return false
	}

	reserved := make([]*Device, 0, len(s.Relations))
	rollback := func(reason string, args ...any) bool {
		for _, d := range reserved {
			d.Release(loco)
		}
		s.release(loco)
		l.log().Debug("street reservation failed",
			append([]any{"street", id, "loco", loco, "reason", reason}, args...)...)
		return false
	}

	for _, r := range s.Relations {
		d := l.device(r.Device)
		if d == nil {
			return rollback("device missing", "device", r.Device)
		}
		if !d.Reserve(loco, r.Priority) {
			return rollback("device busy", "device", r.Device)
		}
		reserved = append(reserved, d)
	}

	if !l.ReserveTrack(s.ToTrack, loco) {
		return rollback("destination busy", "track", s.ToTrack)
	}

	l.notify(ChangeStreet, uint32(id))
	for _, d := range reserved {
		l.notify(ChangeDevice, uint32(d.ID))
	}
	return true
}

// LockStreet locks a street reserved by loco together with its devices and
// destination track. It fails without side effects unless loco holds the
// reservation; after that, any failure releases everything acquired for the
// street, including the reservation.
func (l *Layout) LockStreet(id StreetID, loco LocoID) bool {
	s := l.street(id)
	if s == nil {
		return false
	}
	if !s.lock(loco) {
		return false
	}
	for _, r := range s.Relations {
		d := l.device(r.Device)
		if d == nil || !d.Lock(loco, r.Hard) {
			l.log().Debug("street lock failed", "street", id, "loco", loco, "device", r.Device)
			l.RollbackStreet(id, loco)
			return false
		}
	}
	if !l.LockTrack(s.ToTrack, loco) {
		l.log().Debug("street lock failed", "street", id, "loco", loco, "track", s.ToTrack)
		l.RollbackStreet(id, loco)
		return false
	}

	l.notify(ChangeStreet, uint32(id))
	for _, r := range s.Relations {
		l.notify(ChangeDevice, uint32(r.Device))
	}
	return true
}

// ExecuteStreet commands every relation device into its target state, in
// order. The street must be locked by loco. Commands are fire-and-forget:
// once issued the street counts as executed. It returns false when loco no
// longer holds the street or one of its devices; the caller rolls back.
func (l *Layout) ExecuteStreet(id StreetID, loco LocoID) bool {
	s := l.street(id)
	if s == nil || !s.lockedBy(loco) {
		return false
	}
	for _, r := range s.Relations {
		d := l.device(r.Device)
		if d == nil {
			return false
		}
		wire, ok := d.setState(loco, r.State)
		if !ok {
			l.log().Warn("street execution lost device",
				"street", id,
				"loco", loco,
				"device", r.Device,
			)
			return false
		}
		if l.dispatcher != nil {
			l.dispatcher.SetDevice(d.Binding, wire)
		}
		l.notify(ChangeDevice, uint32(r.Device))
	}
	s.markUsed(l.now())
	return true
}

// ReleaseStreet frees a street and the devices loco holds through it. The
// destination track stays with loco. It reports whether the street was held.
func (l *Layout) ReleaseStreet(id StreetID, loco LocoID) bool {
	s := l.street(id)
	if s == nil {
		return false
	}
	for _, r := range s.Relations {
		if d := l.device(r.Device); d != nil && d.Release(loco) {
			l.notify(ChangeDevice, uint32(r.Device))
		}
	}
	if !s.release(loco) {
		return false
	}
	l.notify(ChangeStreet, uint32(id))
	return true
}

// RollbackStreet undoes an unfinished street commit: the street, its devices
// and the destination track are released.
func (l *Layout) RollbackStreet(id StreetID, loco LocoID) {
	s := l.street(id)
	if s == nil {
		return
	}
	l.ReleaseStreet(id, loco)
	l.ReleaseTrack(s.ToTrack, loco)
}

// ReleaseDevice frees a device held by loco outside of any street.
func (l *Layout) ReleaseDevice(id DeviceID, loco LocoID) bool {
	d := l.device(id)
	if d == nil || !d.Release(loco) {
		return false
	}
	l.notify(ChangeDevice, uint32(id))
	return true
}

// DeviceHardLockedByOther reports whether a device is hard locked by a loco
// other than loco.
func (l *Layout) DeviceHardLockedByOther(id DeviceID, loco LocoID) bool {
	d := l.device(id)
	return d != nil && d.HardLockedByOther(loco)
}

// SetDeviceState commands a device that no loco holds.
func (l *Layout) SetDeviceState(id DeviceID, state hardware.DeviceState) error {
	d := l.device(id)
	if d == nil {
		return fmt.Errorf("%w: %d", ErrDeviceNotFound, id)
	}
	wire, err := d.setManualState(state)
	if err != nil {
		return err
	}
	if l.dispatcher != nil {
		l.dispatcher.SetDevice(d.Binding, wire)
	}
	l.notify(ChangeDevice, uint32(id))
	return nil
}

// --- Feedback ---

// FeedbackByPin resolves the feedback bound to a control pin.
func (l *Layout) FeedbackByPin(control hardware.ControlID, pin uint16) (FeedbackID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, f := range l.feedbacks {
		if f.Control == control && f.Pin == pin {
			return f.ID, true
		}
	}
	return FeedbackNone, false
}

// SetFeedbackState applies a raw reading and returns the logical occupancy
// and whether it changed.
func (l *Layout) SetFeedbackState(id FeedbackID, raw bool) (occupied, changed bool, err error) {
	f := l.feedback(id)
	if f == nil {
		return false, false, fmt.Errorf("%w: %d", ErrFeedbackNotFound, id)
	}
	occupied, changed = f.setRaw(raw)
	if changed {
		l.notify(ChangeFeedback, uint32(id))
	}
	return occupied, changed, nil
}

// SetFeedbackLoco records which loco was expected at a feedback.
func (l *Layout) SetFeedbackLoco(id FeedbackID, loco LocoID) {
	if f := l.feedback(id); f != nil {
		f.setLoco(loco)
	}
}
