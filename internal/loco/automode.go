package loco

import (
	"time"

	"github.com/nerrad567/railcontrol-core/internal/hardware"
	"github.com/nerrad567/railcontrol-core/internal/layout"
	"github.com/nerrad567/railcontrol-core/internal/routing"
)

type eventKind uint8

const (
	eventFirstReached eventKind = iota + 1
	eventStopReached

	eventKinds
)

type event struct {
	kind     eventKind
	feedback layout.FeedbackID
}

// run is the automode control loop. It exits once the state is Off, after
// switching the loco back to manual.
func (l *Loco) run(done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.opts.Tick)
	defer ticker.Stop()

	for {
		if l.tick() {
			return
		}
		select {
		case <-ticker.C:
		case <-l.wake:
		}
	}
}

// tick evaluates the state machine once. It reports whether the loop ends.
func (l *Loco) tick() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		var ev event
		select {
		case ev = <-l.inbox:
			l.pending[ev.kind] = false
		default:
			return l.stepLocked()
		}
		if l.state == StateError {
			continue
		}
		switch ev.kind {
		case eventFirstReached:
			l.firstReachedLocked(ev.feedback)
		case eventStopReached:
			l.stopReachedLocked(ev.feedback)
		}
	}
}

func (l *Loco) stepLocked() bool {
	switch l.state {
	case StateOff:
		l.setStateLocked(StateManual)
		l.logger.Info("loco is now in manual mode", "loco", l.ID)
		return true

	case StateSearchingFirst:
		l.searchFirstLocked()

	case StateSearchingSecond:
		if l.env.TracksToReserve() > 1 {
			l.searchSecondLocked()
		}

	case StateRunning:

	case StateStopping:
		l.logger.Debug("loco waits for its destination before manual mode", "loco", l.ID)

	case StateManual:
		l.failLocked("manual state while automode loop is running")

	case StateError:
		if l.speed != hardware.MinSpeed {
			l.setSpeedLocked(hardware.MinSpeed)
		}
	}
	return false
}

// failLocked records an invariant violation. Reservations are kept for
// manual inspection.
func (l *Loco) failLocked(reason string, args ...any) {
	l.logger.Error("loco invariant violated, entering error state",
		append([]any{
			"loco", l.ID,
			"state", l.state.Detail(),
			"reason", reason,
			"track", l.trackFrom,
			"street", l.streetFirst,
		}, args...)...)
	l.setSpeedLocked(hardware.MinSpeed)
	l.setStateLocked(StateError)
}

func (l *Loco) request(from layout.TrackID, allowTurn bool) routing.Request {
	return routing.Request{
		Loco:      l.ID,
		From:      from,
		AllowTurn: allowTurn,
		Length:    l.length,
		Commuter:  l.commuter,
		Policy:    l.policy,
	}
}

func (l *Loco) setTriggersLocked(t layout.Triggers) {
	l.triggers = t
	for _, fb := range []layout.FeedbackID{t.Reduced, t.Creep, t.Stop, t.Over} {
		if fb != layout.FeedbackNone {
			l.env.SetFeedbackLoco(fb, l.ID)
		}
	}
}

func (l *Loco) searchFirstLocked() {
	if l.streetFirst != layout.StreetNone || l.streetSecond != layout.StreetNone {
		l.failLocked("street already reserved before first search")
		return
	}
	if l.trackFrom == layout.TrackNone {
		l.logger.Info("loco is not on a track, leaving automode", "loco", l.ID)
		l.setStateLocked(StateOff)
		return
	}
	if owner := l.env.TrackOwner(l.trackFrom); owner != l.ID {
		l.failLocked("track held by another loco", "owner", owner)
		return
	}

	leg, ok := l.env.Search(l.request(l.trackFrom, true))
	if !ok {
		l.logger.Debug("no street found", "loco", l.ID, "track", l.trackFrom)
		return
	}

	l.trackFirst = leg.To
	l.streetFirst = leg.Street
	l.firstTrigger = layout.FeedbackNone
	l.setTriggersLocked(leg.Triggers)

	orientation := l.orientation
	if l.env.TrackDirection(l.trackFrom) != leg.FromDirection {
		orientation = orientation.Flip()
		if err := l.env.SetTrackDirection(l.trackFrom, leg.FromDirection); err != nil {
			l.logger.Warn("set track direction failed", "loco", l.ID, "track", l.trackFrom, "error", err)
		}
	}
	l.setOrientationLocked(orientation)
	if err := l.env.SetTrackDirection(leg.To, leg.ToDirection.Flip()); err != nil {
		l.logger.Warn("set track direction failed", "loco", l.ID, "track", leg.To, "error", err)
	}

	l.logger.Info("loco heading to track",
		"loco", l.ID,
		"track", leg.To,
		"street", leg.Street,
	)
	l.setSpeedLocked(l.speeds.Travel)
	l.setStateLocked(StateSearchingSecond)
}

func (l *Loco) searchSecondLocked() {
	if l.streetSecond != layout.StreetNone {
		l.failLocked("street already reserved before second search")
		return
	}
	if l.trackFirst == layout.TrackNone {
		l.logger.Info("loco has no next track, leaving automode", "loco", l.ID)
		l.setStateLocked(StateOff)
		return
	}
	if owner := l.env.TrackOwner(l.trackFirst); owner != l.ID {
		l.failLocked("next track held by another loco", "next", l.trackFirst, "owner", owner)
		return
	}

	// A moving train cannot turn, so streets that need it are skipped.
	leg, ok := l.env.Search(l.request(l.trackFirst, false))
	if !ok {
		l.logger.Debug("no second street found", "loco", l.ID, "track", l.trackFirst)
		return
	}

	l.trackSecond = leg.To
	l.streetSecond = leg.Street
	l.firstTrigger = l.triggers.Stop
	l.setTriggersLocked(leg.Triggers)
	if err := l.env.SetTrackDirection(leg.To, leg.ToDirection.Flip()); err != nil {
		l.logger.Warn("set track direction failed", "loco", l.ID, "track", leg.To, "error", err)
	}

	l.logger.Info("loco heading to track",
		"loco", l.ID,
		"track", leg.To,
		"street", leg.Street,
	)
	l.setSpeedLocked(l.speeds.Travel)
	l.setStateLocked(StateRunning)
}

// Notify delivers an occupied transition of a feedback. Speed pacing
// (reduced, creep, overrun) is applied at once; reaching the end of the
// first leg or the stop point is queued for the next tick. Repeated edges of
// a kind already queued (a bouncing contact) are coalesced. A full queue is
// treated as an invariant violation.
func (l *Loco) Notify(feedback layout.FeedbackID) {
	if feedback == layout.FeedbackNone {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !automodeActive(l.state) {
		return
	}

	switch feedback {
	case l.triggers.Over:
		l.setSpeedLocked(hardware.MinSpeed)
		l.env.Dispatcher().Booster(hardware.BoosterStop)
		l.logger.Error("loco hit overrun feedback",
			"loco", l.ID,
			"feedback", feedback,
			"street", l.streetFirst,
		)

	case l.triggers.Stop:
		l.setSpeedLocked(hardware.MinSpeed)
		l.enqueueLocked(event{kind: eventStopReached, feedback: feedback})

	case l.triggers.Creep:
		if l.speed > l.speeds.Creep {
			l.setSpeedLocked(l.speeds.Creep)
		}

	case l.triggers.Reduced:
		if l.speed > l.speeds.Reduced {
			l.setSpeedLocked(l.speeds.Reduced)
		}

	case l.firstTrigger:
		l.enqueueLocked(event{kind: eventFirstReached, feedback: feedback})
	}
}

func (l *Loco) enqueueLocked(ev event) {
	if l.pending[ev.kind] {
		return
	}
	select {
	case l.inbox <- ev:
		l.pending[ev.kind] = true
		l.signal()
	default:
		l.failLocked("feedback queue full", "feedback", ev.feedback)
	}
}

func (l *Loco) drainLocked() {
	for {
		select {
		case <-l.inbox:
		default:
			l.pending = [eventKinds]bool{}
			return
		}
	}
}

// firstReachedLocked moves the loco onto its first leg's destination: the
// vacated track and the finished street are released and the second leg
// becomes the first.
func (l *Loco) firstReachedLocked(feedback layout.FeedbackID) {
	if l.state != StateRunning && l.state != StateStopping {
		l.failLocked("first leg reached in wrong state", "feedback", feedback)
		return
	}
	if l.streetFirst == layout.StreetNone || l.trackFrom == layout.TrackNone {
		l.failLocked("first leg reached without street or track", "feedback", feedback)
		return
	}

	l.env.ReleaseStreet(l.streetFirst, l.ID)
	l.env.ReleaseTrack(l.trackFrom, l.ID)
	l.streetFirst, l.streetSecond = l.streetSecond, layout.StreetNone
	l.trackFrom, l.trackFirst, l.trackSecond = l.trackFirst, l.trackSecond, layout.TrackNone
	l.firstTrigger = layout.FeedbackNone

	l.logger.Info("loco passed first leg", "loco", l.ID, "track", l.trackFrom)
	if l.state == StateRunning {
		l.setStateLocked(StateSearchingSecond)
	} else {
		l.publishLocked()
	}
}

// stopReachedLocked finishes a journey: the street and the track left behind
// are released and the destination becomes the loco's track.
func (l *Loco) stopReachedLocked(feedback layout.FeedbackID) {
	if l.state != StateSearchingSecond && l.state != StateStopping {
		l.failLocked("stop reached in wrong state", "feedback", feedback)
		return
	}
	if l.streetFirst == layout.StreetNone || l.trackFrom == layout.TrackNone {
		l.failLocked("stop reached without street or track", "feedback", feedback)
		return
	}
	if l.streetSecond != layout.StreetNone {
		l.failLocked("stop reached with a second leg pending", "feedback", feedback)
		return
	}

	street, destination := l.streetFirst, l.trackFirst
	l.env.ReleaseStreet(street, l.ID)
	l.env.ReleaseTrack(l.trackFrom, l.ID)
	l.streetFirst = layout.StreetNone
	l.trackFrom, l.trackFirst = destination, layout.TrackNone
	l.triggers = layout.Triggers{Over: l.triggers.Over}

	l.logger.Info("loco reached its destination",
		"loco", l.ID,
		"track", destination,
		"street", street,
	)
	l.env.DestinationReached(l.ID, street, destination)

	if l.state == StateSearchingSecond {
		l.setStateLocked(StateSearchingFirst)
	} else {
		l.setStateLocked(StateOff)
	}
}
