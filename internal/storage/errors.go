package storage

import "errors"

// Domain errors for storage operations.
var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("storage: object not found")

	// ErrMalformedRecord is returned when a stored settings string cannot be decoded.
	ErrMalformedRecord = errors.New("storage: malformed record")

	// ErrInvalidSchedule is returned for an unparsable cron expression.
	ErrInvalidSchedule = errors.New("storage: invalid schedule")
)
