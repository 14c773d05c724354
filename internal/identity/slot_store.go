package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SlotStore defines the interface for fingerprint slot assignments.
type SlotStore interface {
	Assign(ctx context.Context, slot uint16, userID int64) error
	UserForSlot(ctx context.Context, slot uint16) (int64, error)
	SlotsForUser(ctx context.Context, userID int64) ([]uint16, error)
	Release(ctx context.Context, slot uint16) error
	FreeSlot(ctx context.Context) (uint16, error)
}

// SQLiteSlotStore implements SlotStore using SQLite.
type SQLiteSlotStore struct {
	db *sql.DB
}

// NewSlotStore creates a new SQLite-backed slot store.
func NewSlotStore(db *sql.DB) *SQLiteSlotStore {
	return &SQLiteSlotStore{db: db}
}

// Assign records that a sensor slot holds a template for the given user.
func (s *SQLiteSlotStore) Assign(ctx context.Context, slot uint16, userID int64) error {
	if slot < MinSlot || slot > MaxSlot {
		return ErrInvalidSlot
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO fingerprint_slots (slot, user_id, created_at) VALUES (?, ?, ?)",
		slot, userID, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("assigning slot %d: %w", slot, err)
	}
	return nil
}

// UserForSlot resolves a sensor slot to its user.
func (s *SQLiteSlotStore) UserForSlot(ctx context.Context, slot uint16) (int64, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id FROM fingerprint_slots WHERE slot = ?", slot).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("resolving slot %d: %w", slot, err)
	}
	return userID, nil
}

// SlotsForUser returns all slots holding templates for the given user.
func (s *SQLiteSlotStore) SlotsForUser(ctx context.Context, userID int64) ([]uint16, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT slot FROM fingerprint_slots WHERE user_id = ? ORDER BY slot ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("listing slots for user %d: %w", userID, err)
	}
	defer rows.Close()

	var slots []uint16
	for rows.Next() {
		var slot uint16
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating slots: %w", err)
	}

	if slots == nil {
		slots = []uint16{}
	}
	return slots, nil
}

// Release frees a slot assignment.
func (s *SQLiteSlotStore) Release(ctx context.Context, slot uint16) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM fingerprint_slots WHERE slot = ?", slot)
	if err != nil {
		return fmt.Errorf("releasing slot %d: %w", slot, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// FreeSlot returns the lowest unassigned slot in the sensor's range,
// or ErrCapacityExhausted when the template library is full.
func (s *SQLiteSlotStore) FreeSlot(ctx context.Context) (uint16, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT slot FROM fingerprint_slots ORDER BY slot ASC")
	if err != nil {
		return 0, fmt.Errorf("listing assigned slots: %w", err)
	}
	defer rows.Close()

	taken := make(map[uint16]bool)
	for rows.Next() {
		var slot uint16
		if err := rows.Scan(&slot); err != nil {
			return 0, fmt.Errorf("scanning slot: %w", err)
		}
		taken[slot] = true
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating slots: %w", err)
	}

	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if !taken[slot] {
			return slot, nil
		}
	}
	return 0, ErrCapacityExhausted
}
