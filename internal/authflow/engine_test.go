package authflow

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/door-sentinel/internal/facematch"
	"github.com/nerrad567/door-sentinel/internal/fingerprint"
	"github.com/nerrad567/door-sentinel/internal/identity"
)

// fakeRecognizer always reports the configured observation.
type fakeRecognizer struct {
	mu  sync.Mutex
	obs facematch.Observation
}

func (r *fakeRecognizer) Process(context.Context) facematch.Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.obs
}

// captureStep is one scripted Capture outcome.
type captureStep struct {
	result fingerprint.Result
	err    error
}

// fakeFinger scripts Capture outcomes. When the script is exhausted it
// blocks until the context expires, like a sensor with no finger on it.
type fakeFinger struct {
	mu        sync.Mutex
	steps     []captureStep
	onCapture func()
}

func (f *fakeFinger) Capture(ctx context.Context) (fingerprint.Result, error) {
	f.mu.Lock()
	hook := f.onCapture
	var step *captureStep
	if len(f.steps) > 0 {
		step = &f.steps[0]
		f.steps = f.steps[1:]
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if step != nil {
		return step.result, step.err
	}

	<-ctx.Done()
	return fingerprint.Result{}, fingerprint.ErrCaptureTimeout
}

func (f *fakeFinger) Enroll(context.Context, uint16) error { return nil }
func (f *fakeFinger) Delete(context.Context, uint16) error { return nil }
func (f *fakeFinger) HealthCheck(context.Context) error    { return nil }
func (f *fakeFinger) Close() error                         { return nil }

// fakeDoor counts unlocks and locks.
type fakeDoor struct {
	mu      sync.Mutex
	unlocks int
	locks   int
}

func (d *fakeDoor) Unlock(time.Duration) error {
	d.mu.Lock()
	d.unlocks++
	d.mu.Unlock()
	return nil
}

func (d *fakeDoor) Lock() error {
	d.mu.Lock()
	d.locks++
	d.mu.Unlock()
	return nil
}

func (d *fakeDoor) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unlocks
}

func (d *fakeDoor) lockCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locks
}

type engineFixture struct {
	engine     *Engine
	recognizer *fakeRecognizer
	sensor     *fakeFinger
	door       *fakeDoor
	store      *identity.MemoryStore
	phases     *phaseLog
}

// phaseLog records observer snapshots.
type phaseLog struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (l *phaseLog) record(s Snapshot) {
	l.mu.Lock()
	l.snapshots = append(l.snapshots, s)
	l.mu.Unlock()
}

func (l *phaseLog) all() []Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Snapshot, len(l.snapshots))
	copy(out, l.snapshots)
	return out
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	store := identity.NewMemoryStore()
	recognizer := &fakeRecognizer{}
	sensor := &fakeFinger{}
	door := &fakeDoor{}
	phases := &phaseLog{}

	engine := NewEngine(recognizer, sensor, store, store, store, door, Config{
		PollInterval:   5 * time.Millisecond,
		SessionTimeout: 300 * time.Millisecond,
		CaptureWindow:  20 * time.Millisecond,
		GrantDwell:     time.Millisecond,
		TimeoutDwell:   time.Millisecond,
	})
	engine.OnChange(phases.record)

	return &engineFixture{
		engine:     engine,
		recognizer: recognizer,
		sensor:     sensor,
		door:       door,
		store:      store,
		phases:     phases,
	}
}

func (f *engineFixture) addUser(t *testing.T, name string, active bool) *identity.User {
	t.Helper()
	user := &identity.User{Name: name, IsActive: active}
	if err := f.store.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return user
}

func (f *engineFixture) faceMatch(userID int64, confidence float64) {
	f.recognizer.mu.Lock()
	f.recognizer.obs = facematch.Observation{
		Status:     facematch.StatusMatched,
		UserID:     userID,
		Confidence: confidence,
	}
	f.recognizer.mu.Unlock()
}

func (f *engineFixture) lastEvent(t *testing.T) identity.AccessEvent {
	t.Helper()
	events, err := f.store.RecentAccess(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentAccess() error = %v", err)
	}
	if len(events) == 0 {
		t.Fatal("no access events recorded")
	}
	return events[0]
}

func phaseSequence(snapshots []Snapshot) []Phase {
	out := make([]Phase, len(snapshots))
	for i, s := range snapshots {
		out[i] = s.Phase
	}
	return out
}

func TestEngineGrantSameIdentity(t *testing.T) {
	f := newEngineFixture(t)
	user := f.addUser(t, "Ada", true)
	if err := f.store.Assign(context.Background(), 5, user.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	f.faceMatch(user.ID, 0.8)
	f.sensor.steps = []captureStep{{
		result: fingerprint.Result{Found: true, Slot: 5, Score: 180, Confidence: 0.9},
	}}

	f.engine.pollIdle(context.Background())

	want := []Phase{PhaseFaceMatched, PhaseGranted, PhaseIdle}
	got := phaseSequence(f.phases.all())
	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phases = %v, want %v", got, want)
		}
	}

	if f.door.count() != 1 {
		t.Fatalf("door unlocked %d times, want 1", f.door.count())
	}
	if f.door.lockCount() != 0 {
		t.Fatalf("door locked %d times, want 0 on a grant", f.door.lockCount())
	}

	granted := f.phases.all()[1]
	if granted.Confidence < 0.849 || granted.Confidence > 0.851 {
		t.Fatalf("grant confidence = %v, want 0.85", granted.Confidence)
	}

	event := f.lastEvent(t)
	if event.Result != identity.ResultSuccess {
		t.Fatalf("event.Result = %v, want %v", event.Result, identity.ResultSuccess)
	}
	if event.UserID == nil || *event.UserID != user.ID {
		t.Fatalf("event.UserID = %v, want %d", event.UserID, user.ID)
	}
	if !event.FaceMatch || !event.FingerprintMatch {
		t.Fatal("grant event must record both factors matched")
	}
}

func TestEngineDeniesDifferentIdentities(t *testing.T) {
	f := newEngineFixture(t)
	faceUser := f.addUser(t, "Ada", true)
	otherUser := f.addUser(t, "Brin", true)
	if err := f.store.Assign(context.Background(), 9, otherUser.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	f.faceMatch(faceUser.ID, 0.9)
	f.sensor.steps = []captureStep{{
		result: fingerprint.Result{Found: true, Slot: 9, Score: 200, Confidence: 1.0},
	}}

	f.engine.pollIdle(context.Background())

	if f.door.count() != 0 {
		t.Fatal("door must stay locked when factors disagree")
	}
	if f.door.lockCount() != 1 {
		t.Fatalf("door locked %d times, want 1 on denial", f.door.lockCount())
	}
	final := f.phases.all()[1]
	if final.Phase != PhaseDenied || final.Reason != ReasonDifferentUsers {
		t.Fatalf("final = %+v, want denied with %q", final, ReasonDifferentUsers)
	}
	event := f.lastEvent(t)
	if event.Result != identity.ResultDenied {
		t.Fatalf("event.Result = %v, want %v", event.Result, identity.ResultDenied)
	}
}

func TestEngineDeniesUnassignedSlot(t *testing.T) {
	f := newEngineFixture(t)
	user := f.addUser(t, "Ada", true)

	f.faceMatch(user.ID, 0.9)
	f.sensor.steps = []captureStep{{
		result: fingerprint.Result{Found: true, Slot: 40, Score: 190, Confidence: 0.95},
	}}

	f.engine.pollIdle(context.Background())

	final := f.phases.all()[1]
	if final.Phase != PhaseDenied || final.Reason != ReasonNotRecognized {
		t.Fatalf("final = %+v, want denied with %q", final, ReasonNotRecognized)
	}
	if f.door.count() != 0 {
		t.Fatal("door must stay locked")
	}
}

func TestEngineDeniesNonMatch(t *testing.T) {
	f := newEngineFixture(t)
	user := f.addUser(t, "Ada", true)

	f.faceMatch(user.ID, 0.9)
	f.sensor.steps = []captureStep{{result: fingerprint.Result{Found: false}}}

	f.engine.pollIdle(context.Background())

	final := f.phases.all()[1]
	if final.Phase != PhaseDenied || final.Reason != ReasonNotRecognized {
		t.Fatalf("final = %+v, want denied with %q", final, ReasonNotRecognized)
	}
}

func TestEngineSensorFault(t *testing.T) {
	f := newEngineFixture(t)
	user := f.addUser(t, "Ada", true)

	f.faceMatch(user.ID, 0.9)
	f.sensor.steps = []captureStep{{err: &fingerprint.DeviceError{Op: "GetImage", Code: 0x03}}}

	f.engine.pollIdle(context.Background())

	final := f.phases.all()[1]
	if final.Phase != PhaseDenied || final.Reason != ReasonSensorError {
		t.Fatalf("final = %+v, want denied with %q", final, ReasonSensorError)
	}
	event := f.lastEvent(t)
	if event.Result != identity.ResultFailed {
		t.Fatalf("event.Result = %v, want %v", event.Result, identity.ResultFailed)
	}
}

func TestEngineDeniesUserDisabledMidSession(t *testing.T) {
	f := newEngineFixture(t)
	user := f.addUser(t, "Ada", true)
	if err := f.store.Assign(context.Background(), 3, user.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	f.faceMatch(user.ID, 0.9)
	f.sensor.onCapture = func() {
		_ = f.store.SetActive(context.Background(), user.ID, false)
	}
	f.sensor.steps = []captureStep{{
		result: fingerprint.Result{Found: true, Slot: 3, Score: 200, Confidence: 1.0},
	}}

	f.engine.pollIdle(context.Background())

	final := f.phases.all()[1]
	if final.Phase != PhaseDenied || final.Reason != ReasonDisabled {
		t.Fatalf("final = %+v, want denied with %q", final, ReasonDisabled)
	}
	if f.door.count() != 0 {
		t.Fatal("door must stay locked for a disabled account")
	}
	if f.door.lockCount() != 1 {
		t.Fatalf("door locked %d times, want 1 on denial", f.door.lockCount())
	}
}

func TestEngineSessionTimeout(t *testing.T) {
	f := newEngineFixture(t)
	user := f.addUser(t, "Ada", true)

	f.faceMatch(user.ID, 0.9)
	// No scripted captures: the sensor blocks every window.

	f.engine.pollIdle(context.Background())

	final := f.phases.all()[1]
	if final.Phase != PhaseTimeout || final.Reason != ReasonTimeout {
		t.Fatalf("final = %+v, want timeout", final)
	}
	event := f.lastEvent(t)
	if event.Result != identity.ResultFailed || event.Reason != ReasonTimeout {
		t.Fatalf("event = %+v, want %v with timeout reason", event, identity.ResultFailed)
	}
}

func TestEngineCancelDeniesSession(t *testing.T) {
	f := newEngineFixture(t)
	user := f.addUser(t, "Ada", true)

	f.faceMatch(user.ID, 0.9)

	opened := make(chan struct{})
	var once sync.Once
	f.engine.OnChange(func(s Snapshot) {
		if s.Phase == PhaseFaceMatched {
			once.Do(func() { close(opened) })
		}
	})

	done := make(chan struct{})
	go func() {
		f.engine.pollIdle(context.Background())
		close(done)
	}()

	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("session never opened")
	}
	f.engine.Cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session never terminated after cancel")
	}

	final := f.phases.all()[1]
	if final.Phase != PhaseDenied || final.Reason != ReasonCancelled {
		t.Fatalf("final = %+v, want denied with %q", final, ReasonCancelled)
	}
}

func TestEngineIgnoresInactiveFaceMatch(t *testing.T) {
	f := newEngineFixture(t)
	user := f.addUser(t, "Ada", false)

	f.faceMatch(user.ID, 0.9)
	f.engine.pollIdle(context.Background())

	if got := f.phases.all(); len(got) != 0 {
		t.Fatalf("observer calls = %v, want none for inactive user", got)
	}
	if events, _ := f.store.RecentAccess(context.Background(), 10); len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
	if got := f.engine.Snapshot().Phase; got != PhaseIdle {
		t.Fatalf("phase = %v, want %v", got, PhaseIdle)
	}
}

// TestEngineDecisionTableRandomized drives sessions with randomized
// combinations of slot binding and active flag and checks the grant
// invariant each time: the door opens only when the fingerprint slot
// resolves to the face-matched user and that user is still active.
func TestEngineDecisionTableRandomized(t *testing.T) {
	const (
		slotFaceUser = iota
		slotOtherUser
		slotUnbound
	)

	rng := rand.New(rand.NewSource(0x5eed)) // fixed seed for reproducible failures
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		f := newEngineFixture(t)
		face := f.addUser(t, "Ada", true)
		other := f.addUser(t, "Brin", true)

		binding := rng.Intn(3)
		active := rng.Intn(2) == 0

		switch binding {
		case slotFaceUser:
			if err := f.store.Assign(ctx, 7, face.ID); err != nil {
				t.Fatalf("Assign() error = %v", err)
			}
		case slotOtherUser:
			if err := f.store.Assign(ctx, 7, other.ID); err != nil {
				t.Fatalf("Assign() error = %v", err)
			}
		}
		if !active {
			// Disable between face match and fingerprint resolution so
			// the active flag is tested at decision time.
			f.sensor.onCapture = func() {
				_ = f.store.SetActive(ctx, face.ID, false)
			}
		}

		f.faceMatch(face.ID, 0.8)
		f.sensor.steps = []captureStep{{
			result: fingerprint.Result{Found: true, Slot: 7, Score: 180, Confidence: 0.9},
		}}

		f.engine.pollIdle(ctx)

		wantGrant := binding == slotFaceUser && active
		final := f.phases.all()[1]
		if wantGrant != (final.Phase == PhaseGranted) {
			t.Fatalf("case %d (binding=%d active=%v): phase = %v, want grant %v",
				i, binding, active, final.Phase, wantGrant)
		}
		if wantGrant && f.door.count() != 1 {
			t.Fatalf("case %d: door unlocked %d times, want 1", i, f.door.count())
		}
		if !wantGrant {
			if f.door.count() != 0 {
				t.Fatalf("case %d (binding=%d active=%v): door opened on a non-grant",
					i, binding, active)
			}
			if f.door.lockCount() != 1 {
				t.Fatalf("case %d: door locked %d times, want 1 on denial",
					i, f.door.lockCount())
			}
		}
	}
}

func TestEngineRunStopsOnContextCancel(t *testing.T) {
	f := newEngineFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop")
	}
}
