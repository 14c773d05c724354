package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Result is the outcome of one capture-and-search attempt.
type Result struct {
	// Found reports whether the print matched a stored template.
	Found bool

	// Slot is the matching template slot, valid only when Found.
	Slot uint16

	// Score is the sensor's raw match score, valid only when Found.
	Score uint16

	// Confidence is Score scaled to [0, 1].
	Confidence float64
}

// scoreConfidence converts a raw sensor score to a confidence value.
func scoreConfidence(score uint16) float64 {
	c := float64(score) / fullScore
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// Sensor is the capture/enroll surface the rest of the system consumes.
// DeviceSensor speaks to real hardware; SimSensor is the in-memory
// stand-in.
type Sensor interface {
	// Capture waits for a finger, extracts its features, and searches
	// the template library. A clean non-match returns Found=false with
	// a nil error; ErrCaptureTimeout means the window elapsed without
	// a finger.
	Capture(ctx context.Context) (Result, error)

	// Enroll captures the same finger twice, builds a template, and
	// stores it in the given slot.
	Enroll(ctx context.Context, slot uint16) error

	// Delete removes the template in the given slot.
	Delete(ctx context.Context, slot uint16) error

	// HealthCheck verifies the sensor is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the sensor connection.
	Close() error
}

// Ensure both implementations satisfy Sensor.
var (
	_ Sensor = (*DeviceSensor)(nil)
	_ Sensor = (*SimSensor)(nil)
)

// DeviceSensor composes driver operations into the Sensor surface.
type DeviceSensor struct {
	driver *Driver
}

// NewDeviceSensor wraps a connected driver.
func NewDeviceSensor(driver *Driver) *DeviceSensor {
	return &DeviceSensor{driver: driver}
}

// Capture polls for a finger until the context deadline, then extracts
// features and searches the whole template library.
func (s *DeviceSensor) Capture(ctx context.Context) (Result, error) {
	if err := s.waitForImage(ctx); err != nil {
		return Result{}, err
	}

	if err := s.driver.GenChar(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("extracting features: %w", err)
	}

	slot, score, err := s.driver.Search(ctx, 1, searchStart, searchCount)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			return Result{Found: false}, nil
		}
		return Result{}, fmt.Errorf("searching library: %w", err)
	}

	return Result{
		Found:      true,
		Slot:       slot,
		Score:      score,
		Confidence: scoreConfidence(score),
	}, nil
}

// Enroll captures the finger into both character buffers, merges them
// into a template, and stores it in the given slot. The caller prompts
// the user to lift and replace the finger between captures.
func (s *DeviceSensor) Enroll(ctx context.Context, slot uint16) error {
	for buffer := byte(1); buffer <= 2; buffer++ {
		if err := s.waitForImage(ctx); err != nil {
			return fmt.Errorf("capture %d: %w", buffer, err)
		}
		if err := s.driver.GenChar(ctx, buffer); err != nil {
			return fmt.Errorf("extracting features for capture %d: %w", buffer, err)
		}
	}

	if err := s.driver.RegModel(ctx); err != nil {
		return fmt.Errorf("building template: %w", err)
	}

	if err := s.driver.Store(ctx, 1, slot); err != nil {
		return fmt.Errorf("storing template in slot %d: %w", slot, err)
	}

	return nil
}

// Delete removes the template in the given slot.
func (s *DeviceSensor) Delete(ctx context.Context, slot uint16) error {
	if err := s.driver.DeleteChar(ctx, slot, 1); err != nil {
		return fmt.Errorf("deleting slot %d: %w", slot, err)
	}
	return nil
}

// HealthCheck verifies the sensor answers its password handshake.
func (s *DeviceSensor) HealthCheck(ctx context.Context) error {
	if !s.driver.IsConnected() {
		return ErrNotConnected
	}
	return s.driver.VerifyPassword(ctx)
}

// Close releases the underlying connection.
func (s *DeviceSensor) Close() error {
	return s.driver.Close()
}

// waitForImage polls GetImage until a finger is present or the context
// deadline expires.
func (s *DeviceSensor) waitForImage(ctx context.Context) error {
	for {
		err := s.driver.GetImage(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNoFinger) {
			if ctx.Err() != nil {
				return ErrCaptureTimeout
			}
			return fmt.Errorf("capturing image: %w", err)
		}

		select {
		case <-ctx.Done():
			return ErrCaptureTimeout
		case <-time.After(imagePollInterval):
		}
	}
}
