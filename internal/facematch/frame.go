package facematch

import (
	"context"
	"sync"
	"time"
)

// Frame is a single camera image. Data is the raw encoded image; the
// pipeline never decodes it, that is the detector's job.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Data       []byte
}

// Source produces frames. Next blocks until a frame is available or
// the context is cancelled.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// FrameBuffer is a single-slot latest-value buffer between a camera
// goroutine and the recognition loop. Recognition is far slower than
// capture, so older frames are overwritten rather than queued; the
// consumer always sees the freshest image.
type FrameBuffer struct {
	mu     sync.Mutex
	frame  Frame
	filled bool
	seq    uint64
}

// NewFrameBuffer creates an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Publish stores a frame, replacing any unconsumed one. The sequence
// number is assigned here.
func (b *FrameBuffer) Publish(data []byte) {
	b.mu.Lock()
	b.seq++
	b.frame = Frame{Seq: b.seq, CapturedAt: time.Now(), Data: data}
	b.filled = true
	b.mu.Unlock()
}

// Latest returns the most recent frame. Returns ErrNoFrame before the
// first Publish.
func (b *FrameBuffer) Latest() (Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.filled {
		return Frame{}, ErrNoFrame
	}
	return b.frame, nil
}

// Pump copies frames from a source into the buffer until the context
// is cancelled or the source fails. Blocking; run in a goroutine.
// Returns the source error, or nil on cancellation.
func (b *FrameBuffer) Pump(ctx context.Context, src Source) error {
	for {
		frame, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.Publish(frame.Data)
	}
}
