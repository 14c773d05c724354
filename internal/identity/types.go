package identity

import "time"

// User is an enrolled identity. Both biometric factors reference a user
// by ID; a user must be active for either factor to count.
type User struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	EmployeeID          string    `json:"employee_id,omitempty"`
	IsActive            bool      `json:"is_active"`
	FaceEnrolled        bool      `json:"face_enrolled"`
	FingerprintEnrolled bool      `json:"fingerprint_enrolled"`
	CreatedAt           time.Time `json:"created_at"`
}

// FaceEncoding is a stored face embedding for one user.
type FaceEncoding struct {
	UserID    int64     `json:"user_id"`
	Embedding []float64 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// SlotAssignment maps a sensor template slot to a user.
type SlotAssignment struct {
	Slot      uint16    `json:"slot"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Result classifies the outcome of an authentication attempt.
type Result string

// Access event results.
const (
	ResultSuccess Result = "SUCCESS"
	ResultDenied  Result = "DENIED"
	ResultFailed  Result = "FAILED"
)

// AccessEvent is one row of the access audit trail. UserID is nil when
// the attempt never resolved to a known identity.
type AccessEvent struct {
	ID               string    `json:"id"`
	OccurredAt       time.Time `json:"occurred_at"`
	EventType        string    `json:"event_type"`
	UserID           *int64    `json:"user_id,omitempty"`
	Result           Result    `json:"result"`
	FaceMatch        bool      `json:"face_match"`
	FingerprintMatch bool      `json:"fingerprint_match"`
	Confidence       float64   `json:"confidence"`
	Reason           string    `json:"reason,omitempty"`
}

// EventTypeEntry is the event type recorded for door entry attempts.
const EventTypeEntry = "ENTRY"

// AccessStats aggregates access events by result over a time window.
type AccessStats struct {
	Total   int `json:"total"`
	Granted int `json:"granted"`
	Denied  int `json:"denied"`
	Failed  int `json:"failed"`
}

// SystemLogEntry is one row of the component-level operational log.
type SystemLogEntry struct {
	ID        int64     `json:"id"`
	LoggedAt  time.Time `json:"logged_at"`
	Level     string    `json:"level"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
}

// Sensor slot bounds for the fingerprint template library.
const (
	MinSlot uint16 = 1
	MaxSlot uint16 = 162
)
