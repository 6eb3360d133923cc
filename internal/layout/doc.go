// Package layout holds the physical model of a railway layout and the
// reservation protocol over it.
//
// A Layout owns four tables:
//
//   - Tracks: blocks that hold at most one locomotive
//   - Devices: switches, signals and accessories with a commandable state
//   - Feedbacks: occupancy contacts bound to a control pin
//   - Streets: routes between two tracks, made of ordered device Relations
//
// Objects are addressed by ID. Reservation follows the sequence
// reserve, lock, execute, with rollback by the caller when any step fails:
//
//	if l.ReserveStreet(id, loco) && l.LockStreet(id, loco) && l.ExecuteStreet(id, loco) {
//	    // street is ours, devices are set, destination track is locked
//	} else {
//	    l.RollbackStreet(id, loco)
//	}
//
// Conflicts are reported as false, not as errors.
package layout
