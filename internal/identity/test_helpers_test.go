package identity

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the identity schema
// applied. The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "identity-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			employee_id TEXT UNIQUE,
			is_active INTEGER NOT NULL DEFAULT 1,
			face_enrolled INTEGER NOT NULL DEFAULT 0,
			fingerprint_enrolled INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE face_encodings (
			user_id INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			embedding BLOB NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE fingerprint_slots (
			slot INTEGER PRIMARY KEY CHECK (slot BETWEEN 1 AND 162),
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE access_events (
			id TEXT PRIMARY KEY,
			occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			event_type TEXT NOT NULL,
			user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
			result TEXT NOT NULL CHECK (result IN ('SUCCESS', 'DENIED', 'FAILED')),
			face_match INTEGER NOT NULL DEFAULT 0,
			fingerprint_match INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE system_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			logged_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			level TEXT NOT NULL,
			component TEXT NOT NULL,
			message TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return db
}

// createTestUser inserts a user and returns it with its assigned ID.
func createTestUser(t *testing.T, store UserStore, name string, active bool) *User {
	t.Helper()

	user := &User{Name: name, IsActive: active}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %q: %v", name, err)
	}
	return user
}
