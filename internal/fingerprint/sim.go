package fingerprint

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Simulator timing and scoring envelope. Captures take a plausible
// moment so the surrounding flow behaves like hardware.
const (
	simCaptureDelay = 100 * time.Millisecond

	simMinScore = 120
	simMaxScore = 200
)

// Matcher decides the outcome of a simulated capture given the
// currently enrolled slots. Installing a Matcher makes the simulator
// fully deterministic for tests.
type Matcher func(slots []uint16) (slot uint16, score uint16, ok bool)

// SimSensor is an in-memory Sensor. Enrolled slots live in a set; the
// capture outcome comes from the installed Matcher, or from a seeded
// acceptance-rate draw when none is installed.
type SimSensor struct {
	mu      sync.Mutex
	slots   map[uint16]bool
	matcher Matcher

	acceptRate float64
	rng        *rand.Rand

	closed bool
}

// SimOption configures a SimSensor.
type SimOption func(*SimSensor)

// WithAcceptRate sets the probability that a capture matches when no
// Matcher is installed.
func WithAcceptRate(rate float64) SimOption {
	return func(s *SimSensor) { s.acceptRate = rate }
}

// WithSeed seeds the simulator's random source for reproducible runs.
func WithSeed(seed int64) SimOption {
	return func(s *SimSensor) { s.rng = rand.New(rand.NewSource(seed)) } //nolint:gosec // simulation, not crypto
}

// WithMatcher installs a deterministic capture outcome.
func WithMatcher(m Matcher) SimOption {
	return func(s *SimSensor) { s.matcher = m }
}

// NewSimSensor creates a simulator with an 80% acceptance rate and a
// time-seeded random source.
func NewSimSensor(opts ...SimOption) *SimSensor {
	s := &SimSensor{
		slots:      make(map[uint16]bool),
		acceptRate: 0.8,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // simulation, not crypto
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMatcher replaces the capture outcome decision at runtime.
func (s *SimSensor) SetMatcher(m Matcher) {
	s.mu.Lock()
	s.matcher = m
	s.mu.Unlock()
}

// Preload marks slots as enrolled without going through Enroll.
func (s *SimSensor) Preload(slots ...uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range slots {
		s.slots[slot] = true
	}
}

// EnrolledSlots returns the enrolled slots in ascending order.
func (s *SimSensor) EnrolledSlots() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrolledLocked()
}

func (s *SimSensor) enrolledLocked() []uint16 {
	slots := make([]uint16, 0, len(s.slots))
	for slot := range s.slots {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// Capture simulates one capture-and-search attempt.
func (s *SimSensor) Capture(ctx context.Context) (Result, error) {
	if err := s.simulateDelay(ctx); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Result{}, ErrNotConnected
	}

	enrolled := s.enrolledLocked()

	if s.matcher != nil {
		slot, score, ok := s.matcher(enrolled)
		if !ok {
			return Result{Found: false}, nil
		}
		return Result{Found: true, Slot: slot, Score: score, Confidence: scoreConfidence(score)}, nil
	}

	if len(enrolled) == 0 || s.rng.Float64() >= s.acceptRate {
		return Result{Found: false}, nil
	}

	slot := enrolled[s.rng.Intn(len(enrolled))]
	score := uint16(simMinScore + s.rng.Intn(simMaxScore-simMinScore+1)) //nolint:gosec // bounded range
	return Result{Found: true, Slot: slot, Score: score, Confidence: scoreConfidence(score)}, nil
}

// Enroll marks the slot as holding a template.
func (s *SimSensor) Enroll(ctx context.Context, slot uint16) error {
	if err := s.simulateDelay(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotConnected
	}
	s.slots[slot] = true
	return nil
}

// Delete removes the template in the given slot.
func (s *SimSensor) Delete(_ context.Context, slot uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotConnected
	}
	delete(s.slots, slot)
	return nil
}

// HealthCheck reports whether the simulator is open.
func (s *SimSensor) HealthCheck(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotConnected
	}
	return nil
}

// Close shuts the simulator down.
func (s *SimSensor) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// simulateDelay waits out the capture delay, honouring the context.
func (s *SimSensor) simulateDelay(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ErrCaptureTimeout
	case <-time.After(simCaptureDelay):
		return nil
	}
}
