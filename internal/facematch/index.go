package facematch

import (
	"context"
	"fmt"
	"sync"
	"time"

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

// Match is the result of comparing an embedding against the index.
type Match struct {
	UserID     int64
	Distance   float64
	Confidence float64
}

// Index holds the enrolled embeddings of active users in memory so
// every frame is matched without a database round trip. The cache is
// refreshed from the store when older than the TTL; a failed refresh
// keeps serving the stale copy so a database hiccup does not lock
// everyone out.
//
// All public methods are thread-safe.
type Index struct {
	store     identity.FaceStore
	tolerance float64
	ttl       time.Duration
	logger    Logger

	mu          sync.RWMutex
	entries     []identity.FaceEncoding
	refreshedAt time.Time
}

// NewIndex creates an index over the face store. tolerance is the
// maximum embedding distance accepted as a match.
func NewIndex(store identity.FaceStore, tolerance float64, ttl time.Duration) *Index {
	return &Index{
		store:     store,
		tolerance: tolerance,
		ttl:       ttl,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the index.
func (ix *Index) SetLogger(logger Logger) {
	ix.logger = logger
}

// Refresh reloads enrolled embeddings from the store.
func (ix *Index) Refresh(ctx context.Context) error {
	entries, err := ix.store.ListEnrolled(ctx)
	if err != nil {
		return fmt.Errorf("loading enrolled faces: %w", err)
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.refreshedAt = time.Now()
	ix.mu.Unlock()

	ix.logger.Debug("face index refreshed", "count", len(entries))
	return nil
}

// Invalidate forces the next Best call to refresh. Called after
// enrollment changes.
func (ix *Index) Invalidate() {
	ix.mu.Lock()
	ix.refreshedAt = time.Time{}
	ix.mu.Unlock()
}

// Size returns the number of cached embeddings.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Best finds the closest enrolled embedding within tolerance. Returns
// false when no enrolled face is near enough.
func (ix *Index) Best(ctx context.Context, embedding []float64) (Match, bool) {
	ix.ensureFresh(ctx)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	best := Match{Distance: -1}
	found := false
	for _, e := range ix.entries {
		d, err := euclideanDistance(embedding, e.Embedding)
		if err != nil {
			ix.logger.Warn("skipping enrolled face", "user_id", e.UserID, "error", err)
			continue
		}
		if d > ix.tolerance {
			continue
		}
		if !found || d < best.Distance {
			best = Match{UserID: e.UserID, Distance: d, Confidence: distanceConfidence(d)}
			found = true
		}
	}
	return best, found
}

// ensureFresh refreshes the cache when the TTL has lapsed. Refresh
// failures are logged and the stale cache keeps serving.
func (ix *Index) ensureFresh(ctx context.Context) {
	ix.mu.RLock()
	stale := time.Since(ix.refreshedAt) > ix.ttl
	ix.mu.RUnlock()

	if !stale {
		return
	}
	if err := ix.Refresh(ctx); err != nil {
		ix.logger.Warn("face index refresh failed, serving stale cache", "error", err)
	}
}
