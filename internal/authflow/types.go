package authflow

import "time"

// Phase is the orchestrator state.
type Phase string

// Orchestrator phases. A session runs IDLE -> FACE_MATCHED -> one of
// the terminal phases -> IDLE.
const (
	PhaseIdle        Phase = "IDLE"
	PhaseFaceMatched Phase = "FACE_MATCHED"
	PhaseGranted     Phase = "ACCESS_GRANTED"
	PhaseDenied      Phase = "ACCESS_DENIED"
	PhaseTimeout     Phase = "TIMEOUT"
)

// Denial reasons shown to the user and recorded on access events.
const (
	ReasonDifferentUsers = "Face and fingerprint belong to different users"
	ReasonDisabled       = "User account is disabled"
	ReasonNotRecognized  = "Fingerprint not recognized"
	ReasonSensorError    = "Fingerprint sensor error"
	ReasonTimeout        = "Timeout"
	ReasonCancelled      = "Cancelled"
)

// Snapshot is an immutable view of the orchestrator state, handed to
// observers and API consumers.
type Snapshot struct {
	Phase Phase `json:"phase"`

	// UserID and UserName identify the face-matched user. Zero values
	// while idle.
	UserID   int64  `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`

	// FaceConfidence is the face match confidence that opened the
	// session.
	FaceConfidence float64 `json:"face_confidence,omitempty"`

	// Confidence is the combined decision confidence, set on grant.
	Confidence float64 `json:"confidence,omitempty"`

	// Reason explains a denial or timeout.
	Reason string `json:"reason,omitempty"`

	StartedAt time.Time `json:"started_at,omitempty"`
	Deadline  time.Time `json:"deadline,omitempty"`
}
