package authflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/door-sentinel/internal/facematch"
	"github.com/nerrad567/door-sentinel/internal/fingerprint"
	"github.com/nerrad567/door-sentinel/internal/identity"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recognizer classifies the latest camera frame.
type Recognizer interface {
	Process(ctx context.Context) facematch.Observation
}

// DoorLock is the door surface the engine drives: open on a grant,
// lock on a denial. Zero unlock duration means the configured default.
type DoorLock interface {
	Unlock(duration time.Duration) error
	Lock() error
}

// Config holds the session timing knobs.
type Config struct {
	// PollInterval is the idle-loop tick cadence.
	PollInterval time.Duration

	// SessionTimeout bounds a session from face match to decision.
	SessionTimeout time.Duration

	// CaptureWindow bounds a single fingerprint capture attempt.
	CaptureWindow time.Duration

	// GrantDwell is the pause after a grant or denial before the next
	// session can start.
	GrantDwell time.Duration

	// TimeoutDwell is the shorter pause after a session timeout.
	TimeoutDwell time.Duration

	// UnlockDuration is passed to the door on a grant. Zero uses the
	// door's default.
	UnlockDuration time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = 30 * time.Second
	}
	if c.CaptureWindow == 0 {
		c.CaptureWindow = 2 * time.Second
	}
	if c.GrantDwell == 0 {
		c.GrantDwell = 3 * time.Second
	}
	if c.TimeoutDwell == 0 {
		c.TimeoutDwell = 2 * time.Second
	}
}

// Engine runs the two-factor authentication loop: watch for a face
// match, then require a fingerprint from the same identity before the
// door opens.
//
// Identity Binding:
//   - The door opens only when the fingerprint slot maps to the same
//     user the face matched, and that user is still active at the
//     moment of the decision. A valid face and a valid fingerprint
//     from two different people are denied.
//
// Thread Safety:
//   - Run is the single writer of the state machine. Snapshot and
//     Cancel are safe to call from any goroutine.
type Engine struct {
	recognizer Recognizer
	sensor     fingerprint.Sensor
	users      identity.UserStore
	slots      identity.SlotStore
	events     identity.EventStore
	door       DoorLock
	cfg        Config
	logger     Logger

	mu            sync.Mutex
	snapshot      Snapshot
	sessionCancel context.CancelFunc
	cancelled     bool
	observers     []func(Snapshot)
}

// NewEngine creates an authentication engine. Zero config fields take
// defaults.
func NewEngine(
	recognizer Recognizer,
	sensor fingerprint.Sensor,
	users identity.UserStore,
	slots identity.SlotStore,
	events identity.EventStore,
	door DoorLock,
	cfg Config,
) *Engine {
	cfg.applyDefaults()
	return &Engine{
		recognizer: recognizer,
		sensor:     sensor,
		users:      users,
		slots:      slots,
		events:     events,
		door:       door,
		cfg:        cfg,
		snapshot:   Snapshot{Phase: PhaseIdle},
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// OnChange registers an observer for state snapshots. Observers are
// called in registration order, outside the engine lock.
func (e *Engine) OnChange(fn func(Snapshot)) {
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// Cancel aborts the in-flight session, if any. The session ends in
// ACCESS_DENIED with a cancellation reason. No-op while idle.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.sessionCancel
	if cancel != nil {
		e.cancelled = true
	}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Run executes the authentication loop until the context is cancelled.
// Blocking; run in a goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("authentication engine started",
		"poll_interval", e.cfg.PollInterval.String(),
		"session_timeout", e.cfg.SessionTimeout.String())

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("authentication engine stopped")
			return nil
		case <-ticker.C:
			e.pollIdle(ctx)
		}
	}
}

// pollIdle checks the camera for a face match and, on one, runs a full
// session to its terminal phase.
func (e *Engine) pollIdle(ctx context.Context) {
	obs := e.recognizer.Process(ctx)
	if obs.Status != facematch.StatusMatched {
		return
	}

	user, err := e.users.GetByID(ctx, obs.UserID)
	if err != nil {
		e.logger.Warn("face matched unknown user id", "user_id", obs.UserID, "error", err)
		return
	}
	// A disabled user's face is ignored without feedback. The session
	// never opens, so nothing on the panel reveals the account exists.
	if !user.IsActive {
		return
	}

	e.runSession(ctx, user, obs.Confidence)
}

// runSession drives one session from face match to terminal phase and
// back to idle.
func (e *Engine) runSession(ctx context.Context, user *identity.User, faceConfidence float64) {
	sessCtx, cancel := context.WithTimeout(ctx, e.cfg.SessionTimeout)
	defer cancel()

	started := time.Now()
	e.mu.Lock()
	e.sessionCancel = cancel
	e.cancelled = false
	session := Snapshot{
		Phase:          PhaseFaceMatched,
		UserID:         user.ID,
		UserName:       user.Name,
		FaceConfidence: faceConfidence,
		StartedAt:      started,
		Deadline:       started.Add(e.cfg.SessionTimeout),
	}
	e.snapshot = session
	e.mu.Unlock()
	e.notify(session)

	e.logger.Info("session opened", "user_id", user.ID, "name", user.Name,
		"face_confidence", faceConfidence)

	final := e.collectFingerprint(sessCtx, session)

	e.mu.Lock()
	e.sessionCancel = nil
	cancelled := e.cancelled
	e.snapshot = final
	e.mu.Unlock()

	if cancelled {
		final.Phase = PhaseDenied
		final.Reason = ReasonCancelled
		e.mu.Lock()
		e.snapshot = final
		e.mu.Unlock()
	}
	// A denied session always leaves the door driven locked.
	if final.Phase == PhaseDenied {
		if err := e.door.Lock(); err != nil {
			e.logger.Error("door lock failed after denial", "error", err)
		}
	}

	e.notify(final)
	e.recordDecision(ctx, final)

	dwell := e.cfg.GrantDwell
	if final.Phase == PhaseTimeout {
		dwell = e.cfg.TimeoutDwell
	}
	e.sleep(ctx, dwell)

	idle := Snapshot{Phase: PhaseIdle}
	e.mu.Lock()
	e.snapshot = idle
	e.mu.Unlock()
	e.notify(idle)
}

// collectFingerprint repeatedly attempts fingerprint capture until a
// terminal decision or the session deadline.
func (e *Engine) collectFingerprint(sessCtx context.Context, session Snapshot) Snapshot {
	for {
		if sessCtx.Err() != nil {
			return e.timeout(session)
		}

		capCtx, capCancel := context.WithTimeout(sessCtx, e.cfg.CaptureWindow)
		result, err := e.sensor.Capture(capCtx)
		capCancel()

		switch {
		case err == nil && result.Found:
			return e.decide(sessCtx, session, result)
		case err == nil:
			return e.deny(session, ReasonNotRecognized)
		case errors.Is(err, fingerprint.ErrCaptureTimeout):
			if sessCtx.Err() != nil {
				return e.timeout(session)
			}
			// No finger yet; keep waiting out the session.
		case sessCtx.Err() != nil:
			return e.timeout(session)
		default:
			e.logger.Error("fingerprint capture failed", "error", err)
			return e.fail(session, ReasonSensorError)
		}
	}
}

// decide resolves a fingerprint match against the face-matched user.
// The identity and active checks happen here, in the same step as the
// grant, so an account disabled mid-session is still refused.
func (e *Engine) decide(ctx context.Context, session Snapshot, result fingerprint.Result) Snapshot {
	slotUser, err := e.slots.UserForSlot(ctx, result.Slot)
	if errors.Is(err, identity.ErrNotFound) {
		return e.deny(session, ReasonNotRecognized)
	}
	if err != nil {
		e.logger.Error("slot lookup failed", "slot", result.Slot, "error", err)
		return e.fail(session, ReasonSensorError)
	}

	if slotUser != session.UserID {
		e.logger.Warn("factor identity mismatch",
			"face_user", session.UserID, "fingerprint_user", slotUser)
		return e.deny(session, ReasonDifferentUsers)
	}

	user, err := e.users.GetByID(ctx, session.UserID)
	if err != nil {
		e.logger.Error("user lookup failed", "user_id", session.UserID, "error", err)
		return e.fail(session, ReasonSensorError)
	}
	if !user.IsActive {
		return e.deny(session, ReasonDisabled)
	}

	session.Phase = PhaseGranted
	session.Confidence = (session.FaceConfidence + result.Confidence) / 2

	if err := e.door.Unlock(e.cfg.UnlockDuration); err != nil {
		e.logger.Error("door unlock failed after grant", "error", err)
	}

	e.logger.Info("access granted", "user_id", user.ID, "name", user.Name,
		"confidence", session.Confidence)
	return session
}

func (e *Engine) deny(session Snapshot, reason string) Snapshot {
	session.Phase = PhaseDenied
	session.Reason = reason
	e.logger.Info("access denied", "user_id", session.UserID, "reason", reason)
	return session
}

func (e *Engine) fail(session Snapshot, reason string) Snapshot {
	session.Phase = PhaseDenied
	session.Reason = reason
	return session
}

func (e *Engine) timeout(session Snapshot) Snapshot {
	e.mu.Lock()
	cancelled := e.cancelled
	e.mu.Unlock()
	if cancelled {
		return e.deny(session, ReasonCancelled)
	}

	session.Phase = PhaseTimeout
	session.Reason = ReasonTimeout
	e.logger.Info("session timed out", "user_id", session.UserID)
	return session
}

// recordDecision persists the terminal outcome as an access event,
// plus a system log line for grants and sensor faults.
func (e *Engine) recordDecision(ctx context.Context, final Snapshot) {
	event := &identity.AccessEvent{
		OccurredAt: time.Now(),
		EventType:  identity.EventTypeEntry,
		FaceMatch:  true,
		Reason:     final.Reason,
	}
	if final.UserID != 0 {
		id := final.UserID
		event.UserID = &id
	}

	switch final.Phase {
	case PhaseGranted:
		event.Result = identity.ResultSuccess
		event.FingerprintMatch = true
		event.Confidence = final.Confidence
	case PhaseTimeout:
		event.Result = identity.ResultFailed
	default:
		event.Result = identity.ResultDenied
		if final.Reason == ReasonSensorError {
			event.Result = identity.ResultFailed
		}
		if final.Reason == ReasonDifferentUsers || final.Reason == ReasonDisabled {
			event.FingerprintMatch = true
		}
	}

	if err := e.events.RecordAccess(ctx, event); err != nil {
		e.logger.Error("recording access event failed", "error", err)
	}

	if final.Phase == PhaseGranted || final.Reason == ReasonSensorError {
		level := "INFO"
		msg := "door opened for " + final.UserName
		if final.Reason == ReasonSensorError {
			level = "ERROR"
			msg = "fingerprint sensor fault during session"
		}
		entry := &identity.SystemLogEntry{
			LoggedAt:  time.Now(),
			Level:     level,
			Component: "authflow",
			Message:   msg,
		}
		if err := e.events.RecordSystem(ctx, entry); err != nil {
			e.logger.Error("recording system log failed", "error", err)
		}
	}
}

// notify delivers a snapshot to observers outside the lock, in
// registration order.
func (e *Engine) notify(snapshot Snapshot) {
	e.mu.Lock()
	observers := make([]func(Snapshot), len(e.observers))
	copy(observers, e.observers)
	e.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
