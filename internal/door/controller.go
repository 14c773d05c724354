package door

import (
	"fmt"
	"sync"
	"time"
)

// State is the door lock state.
type State string

// Door lock states.
const (
	StateLocked    State = "LOCKED"
	StateUnlocking State = "UNLOCKING"
	StateUnlocked  State = "UNLOCKED"
	StateLocking   State = "LOCKING"
	StateError     State = "ERROR"
)

// Status is an immutable snapshot of the controller, handed to
// observers and API consumers.
type Status struct {
	State     State     `json:"state"`
	ChangedAt time.Time `json:"changed_at"`

	// RelockAt is when the pending auto-relock fires. Zero when no
	// relock is scheduled.
	RelockAt time.Time `json:"relock_at,omitempty"`
}

// Observer receives state snapshots. Observers are called in
// registration order, outside the controller lock; a re-entrant call
// back into the controller is safe.
type Observer func(Status)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Controller owns the door lock state machine and the auto-relock
// timer.
//
// Thread Safety:
//   - All methods are safe for concurrent use. One mutex guards the
//     state, the timer, and the observer list.
//
// Relock Semantics:
//   - Every Unlock cancels any pending relock and schedules a fresh
//     one, so overlapping grants extend the open window rather than
//     cutting it short (last unlock wins).
type Controller struct {
	actuator Actuator
	logger   Logger

	defaultUnlock time.Duration

	mu          sync.Mutex
	state       State
	changedAt   time.Time
	relockTimer *time.Timer
	relockAt    time.Time
	timerGen    uint64
	observers   []Observer
}

// NewController creates a locked controller. defaultUnlock is used
// when Unlock is called with a zero duration.
func NewController(actuator Actuator, defaultUnlock time.Duration, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{
		actuator:      actuator,
		logger:        logger,
		defaultUnlock: defaultUnlock,
		state:         StateLocked,
		changedAt:     time.Now(),
	}
}

// OnChange registers an observer for state snapshots.
func (c *Controller) OnChange(fn Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Status returns the current state snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Unlock opens the door for the given duration (the default when
// zero), scheduling an automatic relock. A second Unlock while open
// restarts the countdown.
func (c *Controller) Unlock(duration time.Duration) error {
	if duration == 0 {
		duration = c.defaultUnlock
	}
	if duration < 0 {
		return ErrInvalidDuration
	}

	c.mu.Lock()
	snapshots, err := c.unlockLocked(duration)
	c.mu.Unlock()

	c.notify(snapshots)
	return err
}

func (c *Controller) unlockLocked(duration time.Duration) ([]Status, error) {
	c.cancelRelockLocked()

	var snapshots []Status
	snapshots = append(snapshots, c.setStateLocked(StateUnlocking))

	if err := c.actuator.Unlock(); err != nil {
		snapshots = append(snapshots, c.setStateLocked(StateError))
		c.logger.Error("unlock actuation failed", "error", err)
		return snapshots, fmt.Errorf("%w: %w", ErrActuatorFailed, err)
	}

	snapshots = append(snapshots, c.setStateLocked(StateUnlocked))
	c.scheduleRelockLocked(duration)
	c.logger.Info("door unlocked", "relock_in", duration.String())

	return snapshots, nil
}

// Lock closes the door immediately. Idempotent: locking a locked door
// is a no-op.
func (c *Controller) Lock() error {
	c.mu.Lock()
	snapshots, err := c.lockLocked()
	c.mu.Unlock()

	c.notify(snapshots)
	return err
}

func (c *Controller) lockLocked() ([]Status, error) {
	if c.state == StateLocked {
		return nil, nil
	}

	c.cancelRelockLocked()

	var snapshots []Status
	snapshots = append(snapshots, c.setStateLocked(StateLocking))

	if err := c.actuator.Lock(); err != nil {
		snapshots = append(snapshots, c.setStateLocked(StateError))
		c.logger.Error("lock actuation failed", "error", err)
		return snapshots, fmt.Errorf("%w: %w", ErrActuatorFailed, err)
	}

	snapshots = append(snapshots, c.setStateLocked(StateLocked))
	c.logger.Info("door locked")

	return snapshots, nil
}

// EmergencyLock forces the door closed with the shortest possible
// path: cancel the relock, drive the actuator, set LOCKED. The
// actuator result is logged but the state is forced regardless so a
// wedged relay cannot leave the state machine reporting open.
func (c *Controller) EmergencyLock() {
	c.mu.Lock()
	c.cancelRelockLocked()
	if err := c.actuator.Lock(); err != nil {
		c.logger.Error("emergency lock actuation failed", "error", err)
	}
	snapshot := c.setStateLocked(StateLocked)
	c.mu.Unlock()

	c.notify([]Status{snapshot})
}

// setStateLocked transitions to the given state and returns the
// snapshot for observer delivery. Must be called with c.mu held.
func (c *Controller) setStateLocked(state State) Status {
	c.state = state
	c.changedAt = time.Now()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	s := Status{State: c.state, ChangedAt: c.changedAt}
	if c.relockTimer != nil {
		s.RelockAt = c.relockAt
	}
	return s
}

// scheduleRelockLocked starts a fresh relock countdown. Must be called
// with c.mu held.
func (c *Controller) scheduleRelockLocked(duration time.Duration) {
	c.timerGen++
	gen := c.timerGen
	c.relockAt = time.Now().Add(duration)
	c.relockTimer = time.AfterFunc(duration, func() {
		c.autoRelock(gen)
	})
}

// cancelRelockLocked stops any pending relock. Must be called with
// c.mu held.
func (c *Controller) cancelRelockLocked() {
	c.timerGen++
	if c.relockTimer != nil {
		c.relockTimer.Stop()
		c.relockTimer = nil
		c.relockAt = time.Time{}
	}
}

// autoRelock fires when the countdown expires. The generation check
// discards timers that were superseded by a later Unlock or cancel.
func (c *Controller) autoRelock(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.relockTimer = nil
	c.relockAt = time.Time{}
	snapshots, err := c.lockLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("auto-relock failed", "error", err)
	}
	c.notify(snapshots)
}

// notify delivers snapshots to observers outside the lock, in
// registration order.
func (c *Controller) notify(snapshots []Status) {
	if len(snapshots) == 0 {
		return
	}

	c.mu.Lock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, snapshot := range snapshots {
		for _, fn := range observers {
			fn(snapshot)
		}
	}
}
