package door

import (
	"fmt"
	"os"
	"sync"
)

// Actuator drives the physical lock mechanism.
type Actuator interface {
	// Unlock energises the release. Must be safe to call repeatedly.
	Unlock() error

	// Lock de-energises the release. Must be safe to call repeatedly.
	Lock() error
}

// SimActuator is an in-memory Actuator for tests and the simulator
// profile. FailNext forces the next operation to fail.
type SimActuator struct {
	mu       sync.Mutex
	unlocked bool
	failNext bool
}

// NewSimActuator creates a locked simulated actuator.
func NewSimActuator() *SimActuator {
	return &SimActuator{}
}

// Unlock energises the simulated release.
func (a *SimActuator) Unlock() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failNext {
		a.failNext = false
		return ErrActuatorFailed
	}
	a.unlocked = true
	return nil
}

// Lock de-energises the simulated release.
func (a *SimActuator) Lock() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failNext {
		a.failNext = false
		return ErrActuatorFailed
	}
	a.unlocked = false
	return nil
}

// IsUnlocked reports the simulated hardware position.
func (a *SimActuator) IsUnlocked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unlocked
}

// FailNext makes the next operation fail, for exercising error paths.
func (a *SimActuator) FailNext() {
	a.mu.Lock()
	a.failNext = true
	a.mu.Unlock()
}

// GPIO line values for the lock relay.
const (
	gpioUnlocked = "1"
	gpioLocked   = "0"

	gpioFileMode = 0o644
)

// GPIOActuator drives a relay through a sysfs GPIO value file.
type GPIOActuator struct {
	path string
}

// NewGPIOActuator creates an actuator writing to the given value file
// (e.g., /sys/class/gpio/gpio17/value).
func NewGPIOActuator(path string) *GPIOActuator {
	return &GPIOActuator{path: path}
}

// Unlock raises the relay line.
func (a *GPIOActuator) Unlock() error {
	if err := os.WriteFile(a.path, []byte(gpioUnlocked), gpioFileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrActuatorFailed, err)
	}
	return nil
}

// Lock drops the relay line.
func (a *GPIOActuator) Lock() error {
	if err := os.WriteFile(a.path, []byte(gpioLocked), gpioFileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrActuatorFailed, err)
	}
	return nil
}
