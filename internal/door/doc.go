// Package door drives the physical lock.
//
// An Actuator abstracts the hardware (a GPIO line in production, an
// in-memory sim for tests). The Controller layers the state machine on
// top: LOCKED, UNLOCKING, UNLOCKED, LOCKING and ERROR, with an
// auto-relock timer so the door never stays open past its window. A
// Monitor provides a periodic heartbeat of the current state for
// health reporting.
package door
