// Package loco implements locomotives and their automode state machine.
//
// Each loco in automode runs one goroutine that ticks at a fixed period:
//
//	Manual -> SearchingFirst -> SearchingSecond -> Running
//	                ^                 |               |
//	                +-- stop reached -+               | first leg reached
//	                                  ^---------------+
//
// A manual-mode request while underway moves the loco to Stopping; it
// completes its journey and then goes Off, after which the loop exits and
// the loco is back in Manual. Invariant violations move it to Error, which
// holds until speed zero is commanded by hand.
//
// Feedback events are delivered with Notify. Speed pacing is applied at
// once; leg changes are queued and processed at the start of the next tick,
// under the same lock that guards the tick itself.
package loco
