package identity

import "errors"

// Sentinel errors for identity storage operations.
// Check with errors.Is().
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("identity: not found")

	// ErrEmployeeIDExists indicates a user with the same employee ID
	// is already enrolled.
	ErrEmployeeIDExists = errors.New("identity: employee ID already exists")

	// ErrSlotTaken indicates the fingerprint slot is already assigned.
	ErrSlotTaken = errors.New("identity: slot already assigned")

	// ErrCapacityExhausted indicates every fingerprint slot is assigned.
	ErrCapacityExhausted = errors.New("identity: fingerprint storage full")

	// ErrInvalidSlot indicates a slot outside the sensor's range.
	ErrInvalidSlot = errors.New("identity: slot out of range")
)
