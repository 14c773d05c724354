package facematch

import (
	"context"
	"sync"
	"time"
)

// SimSource emits synthetic frames at a fixed interval. Used by the
// sim deployment profile and in tests, in place of a real camera.
type SimSource struct {
	interval time.Duration

	mu     sync.Mutex
	data   []byte
	closed bool
	done   chan struct{}
}

// NewSimSource creates a source producing one frame per interval.
func NewSimSource(interval time.Duration) *SimSource {
	return &SimSource{
		interval: interval,
		data:     []byte("sim-frame"),
		done:     make(chan struct{}),
	}
}

// SetFrame replaces the payload emitted by subsequent frames.
func (s *SimSource) SetFrame(data []byte) {
	s.mu.Lock()
	s.data = append([]byte(nil), data...)
	s.mu.Unlock()
}

// Next returns the next synthetic frame after one interval.
func (s *SimSource) Next(ctx context.Context) (Frame, error) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-s.done:
		return Frame{}, ErrSourceClosed
	case <-timer.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, ErrSourceClosed
	}
	return Frame{CapturedAt: time.Now(), Data: append([]byte(nil), s.data...)}, nil
}

// Close stops the source. Subsequent Next calls return ErrSourceClosed.
func (s *SimSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

var _ Source = (*SimSource)(nil)

// SimDetector returns a scripted set of faces for every frame. The
// sim profile scripts it over MQTT; tests set it directly.
type SimDetector struct {
	mu    sync.Mutex
	faces []Face
	err   error
}

// NewSimDetector creates a detector that initially sees no faces.
func NewSimDetector() *SimDetector {
	return &SimDetector{}
}

// SetFaces sets the faces reported for subsequent frames.
func (d *SimDetector) SetFaces(faces ...Face) {
	d.mu.Lock()
	d.faces = faces
	d.err = nil
	d.mu.Unlock()
}

// SetError makes subsequent Detect calls fail.
func (d *SimDetector) SetError(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// Clear returns the detector to seeing no faces.
func (d *SimDetector) Clear() {
	d.mu.Lock()
	d.faces = nil
	d.err = nil
	d.mu.Unlock()
}

// Detect returns the scripted faces.
func (d *SimDetector) Detect(Frame) ([]Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	out := make([]Face, len(d.faces))
	copy(out, d.faces)
	return out, nil
}

var _ Detector = (*SimDetector)(nil)
