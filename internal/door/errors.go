package door

import "errors"

// Sentinel errors for door control operations.
// Check with errors.Is().
var (
	// ErrActuatorFailed indicates the lock hardware did not respond.
	ErrActuatorFailed = errors.New("door: actuator failed")

	// ErrInvalidDuration indicates a non-positive unlock duration.
	ErrInvalidDuration = errors.New("door: invalid unlock duration")
)
