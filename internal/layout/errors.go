package layout

import "errors"

// Domain errors for the layout package. Reservation conflicts are not
// errors: Reserve/Lock report them with a false result.
var (
	// ErrTrackNotFound is returned when a track ID is unknown.
	ErrTrackNotFound = errors.New("layout: track not found")

	// ErrStreetNotFound is returned when a street ID is unknown.
	ErrStreetNotFound = errors.New("layout: street not found")

	// ErrDeviceNotFound is returned when a device ID is unknown.
	ErrDeviceNotFound = errors.New("layout: device not found")

	// ErrFeedbackNotFound is returned when a feedback ID or pin is unknown.
	ErrFeedbackNotFound = errors.New("layout: feedback not found")

	// ErrExists is returned when adding an object whose ID is taken.
	ErrExists = errors.New("layout: object already exists")

	// ErrInUse is returned when removing or reconfiguring an object that is
	// reserved, locked or referenced.
	ErrInUse = errors.New("layout: object in use")

	// ErrDeviceLocked is returned for manual state changes of a held device.
	ErrDeviceLocked = errors.New("layout: device is held by a route")

	// ErrInvalidValue is returned when a textual value cannot be parsed.
	ErrInvalidValue = errors.New("layout: invalid value")

	// ErrInvalidObject is returned when an object is structurally invalid.
	ErrInvalidObject = errors.New("layout: invalid object")
)
