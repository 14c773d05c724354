package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventStore defines the interface for the access and system audit trail.
type EventStore interface {
	RecordAccess(ctx context.Context, event *AccessEvent) error
	RecentAccess(ctx context.Context, limit int) ([]AccessEvent, error)
	Stats(ctx context.Context, since time.Time) (*AccessStats, error)
	RecordSystem(ctx context.Context, entry *SystemLogEntry) error
}

// Default and maximum page sizes for event queries.
const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

// SQLiteEventStore implements EventStore using SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

// NewEventStore creates a new SQLite-backed event store.
func NewEventStore(db *sql.DB) *SQLiteEventStore {
	return &SQLiteEventStore{db: db}
}

// RecordAccess inserts an access event. ID and OccurredAt are generated
// if empty.
func (s *SQLiteEventStore) RecordAccess(ctx context.Context, event *AccessEvent) error {
	if event.ID == "" {
		event.ID = "acc-" + uuid.NewString()[:8]
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.EventType == "" {
		event.EventType = EventTypeEntry
	}

	var userID any
	if event.UserID != nil {
		userID = *event.UserID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_events (id, occurred_at, event_type, user_id, result, face_match, fingerprint_match, confidence, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.OccurredAt.Format(time.RFC3339), event.EventType, userID,
		string(event.Result), boolToInt(event.FaceMatch), boolToInt(event.FingerprintMatch),
		event.Confidence, event.Reason,
	)
	if err != nil {
		return fmt.Errorf("recording access event: %w", err)
	}
	return nil
}

// RecentAccess returns the newest access events, newest first.
func (s *SQLiteEventStore) RecentAccess(ctx context.Context, limit int) ([]AccessEvent, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, occurred_at, event_type, user_id, result, face_match, fingerprint_match, confidence, reason
		 FROM access_events ORDER BY occurred_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing access events: %w", err)
	}
	defer rows.Close()

	var events []AccessEvent
	for rows.Next() {
		var ev AccessEvent
		var occurredAt, result string
		var userID sql.NullInt64
		var faceMatch, fingerprintMatch int
		err := rows.Scan(&ev.ID, &occurredAt, &ev.EventType, &userID, &result,
			&faceMatch, &fingerprintMatch, &ev.Confidence, &ev.Reason)
		if err != nil {
			return nil, fmt.Errorf("scanning access event: %w", err)
		}
		ev.OccurredAt = parseTimestamp(occurredAt)
		ev.Result = Result(result)
		ev.FaceMatch = faceMatch != 0
		ev.FingerprintMatch = fingerprintMatch != 0
		if userID.Valid {
			id := userID.Int64
			ev.UserID = &id
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access events: %w", err)
	}

	if events == nil {
		events = []AccessEvent{}
	}
	return events, nil
}

// Stats aggregates access events by result since the given time.
func (s *SQLiteEventStore) Stats(ctx context.Context, since time.Time) (*AccessStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result, COUNT(*) FROM access_events WHERE occurred_at >= ? GROUP BY result`,
		since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("aggregating access events: %w", err)
	}
	defer rows.Close()

	stats := &AccessStats{}
	for rows.Next() {
		var result string
		var count int
		if err := rows.Scan(&result, &count); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		stats.Total += count
		switch Result(result) {
		case ResultSuccess:
			stats.Granted = count
		case ResultDenied:
			stats.Denied = count
		case ResultFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stats rows: %w", err)
	}

	return stats, nil
}

// RecordSystem inserts a system log entry. LoggedAt is generated if zero.
func (s *SQLiteEventStore) RecordSystem(ctx context.Context, entry *SystemLogEntry) error {
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO system_logs (logged_at, level, component, message) VALUES (?, ?, ?, ?)",
		entry.LoggedAt.Format(time.RFC3339), entry.Level, entry.Component, entry.Message,
	)
	if err != nil {
		return fmt.Errorf("recording system log: %w", err)
	}

	entry.ID, _ = result.LastInsertId() //nolint:errcheck // always succeeds on SQLite
	return nil
}
