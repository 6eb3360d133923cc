package loco

import "errors"

// Domain errors for the loco package.
var (
	// ErrNotOnTrack is returned when automode is started for a loco that
	// does not stand on a track.
	ErrNotOnTrack = errors.New("loco: not on a track")

	// ErrErrorState is returned when automode is started for a loco in
	// error state. Setting speed zero resets it.
	ErrErrorState = errors.New("loco: in error state")

	// ErrAlreadyRunning is returned when automode is started twice.
	ErrAlreadyRunning = errors.New("loco: automode already running")

	// ErrAutomodeActive is returned for manual commands that conflict with
	// a running automode.
	ErrAutomodeActive = errors.New("loco: automode active")

	// ErrHasTrack is returned when placing a loco that already has a track.
	ErrHasTrack = errors.New("loco: already on a track")

	// ErrInvalidFunction is returned for function numbers above 31.
	ErrInvalidFunction = errors.New("loco: invalid function number")

	// ErrInvalidConfig is returned for a structurally invalid configuration.
	ErrInvalidConfig = errors.New("loco: invalid configuration")

	// ErrForcedStop is returned by Close when the loco did not reach its
	// destination in time and its journey was abandoned.
	ErrForcedStop = errors.New("loco: journey abandoned on shutdown")
)
