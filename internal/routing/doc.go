// Package routing picks the next street for a locomotive in automode.
//
// The Coordinator filters the streets leaving a track (automode flag,
// direction, train length, commuter restriction, hard-locked devices),
// orders them by the selection policy and commits the first one whose
// reserve, lock and execute steps all succeed.
package routing
