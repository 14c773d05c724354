package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, activeOnly bool) ([]User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SetEnrollment(ctx context.Context, id int64, face, fingerprint *bool) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// SQLiteUserStore implements UserStore using SQLite.
type SQLiteUserStore struct {
	db *sql.DB
}

// NewUserStore creates a new SQLite-backed user store.
func NewUserStore(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{db: db}
}

// Create inserts a new user. The generated ID is written back to user.ID.
func (s *SQLiteUserStore) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC().Format(time.RFC3339)
	user.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, employee_id, is_active, face_enrolled, fingerprint_enrolled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.Name, nullString(user.EmployeeID), boolToInt(user.IsActive),
		boolToInt(user.FaceEnrolled), boolToInt(user.FingerprintEnrolled), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmployeeIDExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	user.ID, _ = result.LastInsertId() //nolint:errcheck // always succeeds on SQLite
	return nil
}

// GetByID retrieves a user by their unique ID.
func (s *SQLiteUserStore) GetByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, employee_id, is_active, face_enrolled, fingerprint_enrolled, created_at FROM users WHERE id = ?", id)
	return scanUserFrom(row)
}

// List returns users ordered by creation date. With activeOnly set,
// disabled accounts are omitted.
func (s *SQLiteUserStore) List(ctx context.Context, activeOnly bool) ([]User, error) {
	query := "SELECT id, name, employee_id, is_active, face_enrolled, fingerprint_enrolled, created_at FROM users"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	if users == nil {
		users = []User{}
	}
	return users, nil
}

// SetActive enables or disables a user account.
func (s *SQLiteUserStore) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("updating user active flag: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnrollment updates the enrollment flags. Nil pointers leave the
// corresponding flag unchanged.
func (s *SQLiteUserStore) SetEnrollment(ctx context.Context, id int64, face, fingerprint *bool) error {
	var sets []string
	var args []any
	if face != nil {
		sets = append(sets, "face_enrolled = ?")
		args = append(args, boolToInt(*face))
	}
	if fingerprint != nil {
		sets = append(sets, "fingerprint_enrolled = ?")
		args = append(args, boolToInt(*fingerprint))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating enrollment flags: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user. Face encodings and slot assignments cascade.
func (s *SQLiteUserStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the total number of users.
func (s *SQLiteUserStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanUserFrom scans a user from any scanner (Row or Rows).
func scanUserFrom(s scanner) (*User, error) {
	var u User
	var employeeID sql.NullString
	var isActive, faceEnrolled, fingerprintEnrolled int
	var createdAt string

	err := s.Scan(&u.ID, &u.Name, &employeeID, &isActive,
		&faceEnrolled, &fingerprintEnrolled, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.IsActive = isActive != 0
	u.FaceEnrolled = faceEnrolled != 0
	u.FingerprintEnrolled = fingerprintEnrolled != 0
	if employeeID.Valid {
		u.EmployeeID = employeeID.String
	}
	u.CreatedAt = parseTimestamp(createdAt)

	return &u, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// parseTimestamp handles both RFC3339 timestamps written by this package
// and SQLite's CURRENT_TIMESTAMP format from column defaults.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s) //nolint:errcheck // zero time on mismatch
	return t
}
