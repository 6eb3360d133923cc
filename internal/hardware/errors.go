package hardware

import "errors"

// Domain errors for the hardware package.
var (
	// ErrUnknownControl is returned when a binding refers to a control that is not configured.
	ErrUnknownControl = errors.New("hardware: unknown control")

	// ErrUnknownBackend is returned when a control configuration names an unsupported backend type.
	ErrUnknownBackend = errors.New("hardware: unknown backend type")

	// ErrDuplicateControl is returned when two controls share an ID.
	ErrDuplicateControl = errors.New("hardware: duplicate control")

	// ErrInvalidValue is returned when a textual value cannot be parsed.
	ErrInvalidValue = errors.New("hardware: invalid value")

	// ErrInvalidMessage is returned when an inbound MQTT message cannot be decoded.
	ErrInvalidMessage = errors.New("hardware: invalid message")
)
