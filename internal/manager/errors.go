package manager

import "errors"

// Domain errors for the manager package.
var (
	// ErrLocoNotFound is returned when a loco ID is unknown.
	ErrLocoNotFound = errors.New("manager: loco not found")

	// ErrLocoExists is returned when adding a loco whose ID is taken.
	ErrLocoExists = errors.New("manager: loco already exists")

	// ErrNoRepository is returned by persistence calls on a manager without storage.
	ErrNoRepository = errors.New("manager: no repository configured")

	// ErrInvalidSeed is returned when a layout seed file cannot be applied.
	ErrInvalidSeed = errors.New("manager: invalid layout seed")
)
