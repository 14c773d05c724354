package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// FaceStore defines the interface for face embedding persistence.
type FaceStore interface {
	Upsert(ctx context.Context, userID int64, embedding []float64) error
	ListEnrolled(ctx context.Context) ([]FaceEncoding, error)
	Delete(ctx context.Context, userID int64) error
}

// SQLiteFaceStore implements FaceStore using SQLite. Embeddings are
// stored as JSON arrays of float64.
type SQLiteFaceStore struct {
	db *sql.DB
}

// NewFaceStore creates a new SQLite-backed face store.
func NewFaceStore(db *sql.DB) *SQLiteFaceStore {
	return &SQLiteFaceStore{db: db}
}

// Upsert stores the embedding for a user, replacing any existing one.
func (s *SQLiteFaceStore) Upsert(ctx context.Context, userID int64, embedding []float64) error {
	blob, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO face_encodings (user_id, embedding, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET embedding = excluded.embedding, created_at = excluded.created_at`,
		userID, blob, now,
	)
	if err != nil {
		return fmt.Errorf("storing face encoding: %w", err)
	}
	return nil
}

// ListEnrolled returns embeddings for all active users.
func (s *SQLiteFaceStore) ListEnrolled(ctx context.Context) ([]FaceEncoding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.user_id, f.embedding, f.created_at
		 FROM face_encodings f
		 JOIN users u ON u.id = f.user_id
		 WHERE u.is_active = 1
		 ORDER BY f.user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing face encodings: %w", err)
	}
	defer rows.Close()

	var encodings []FaceEncoding
	for rows.Next() {
		var enc FaceEncoding
		var blob []byte
		var createdAt string
		if err := rows.Scan(&enc.UserID, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning face encoding: %w", err)
		}
		if err := json.Unmarshal(blob, &enc.Embedding); err != nil {
			return nil, fmt.Errorf("decoding embedding for user %d: %w", enc.UserID, err)
		}
		enc.CreatedAt = parseTimestamp(createdAt)
		encodings = append(encodings, enc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating face encodings: %w", err)
	}

	if encodings == nil {
		encodings = []FaceEncoding{}
	}
	return encodings, nil
}

// Delete removes a user's embedding.
func (s *SQLiteFaceStore) Delete(ctx context.Context, userID int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM face_encodings WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("deleting face encoding: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
