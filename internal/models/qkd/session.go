package qkd

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the current state of a QKD session
type SessionStatus string

const (
	SessionWaitingForBob SessionStatus = "waiting_for_bob"
	SessionActive        SessionStatus = "active"
	SessionRunning       SessionStatus = "running"
	SessionCompleted     SessionStatus = "completed"
	SessionAborted       SessionStatus = "aborted"
	SessionFailed        SessionStatus = "failed"
)

// QuantumBackendType represents the channel backend a session runs on
type QuantumBackendType string

const (
	BackendSimulator QuantumBackendType = "simulator"
	BackendShots     QuantumBackendType = "shots"
)

const (
	// MinQubits keeps the chance that a run sifts to fewer than two bits,
	// which leaves nothing to both reveal and keep, below 3e-4 per attempt
	MinQubits = 16
	MaxQubits = 1 << 20
)

// QKDSession represents a BB84 run between Alice and Bob
type QKDSession struct {
	SessionID       uuid.UUID          `json:"session_id"`
	AliceID         string             `json:"alice_id"`
	BobID           string             `json:"bob_id,omitempty"`
	Status          SessionStatus      `json:"status"`
	Backend         QuantumBackendType `json:"backend"`
	Qubits          int                `json:"qubits"`
	RevealFraction  float64            `json:"reveal_fraction"`
	Threshold       float64            `json:"threshold"`
	Eavesdropper    bool               `json:"eavesdropper"`
	Attempts        int                `json:"attempts"`
	Phases          []string           `json:"phases,omitempty"`
	ErrorRate       float64            `json:"error_rate"`
	MissProbability float64            `json:"miss_probability"`
	SiftedKeyLength int                `json:"sifted_key_length"`
	FinalKeyLength  int                `json:"final_key_length"`
	Detected        bool               `json:"eavesdropping_detected"`
	KeyID           *uuid.UUID         `json:"key_id,omitempty"`
	Message         string             `json:"message,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	ExpiresAt       time.Time          `json:"expires_at"`
}

// QuantumKey represents a distilled secret key
type QuantumKey struct {
	KeyID       uuid.UUID  `json:"key_id"`
	SessionID   uuid.UUID  `json:"session_id"`
	KeyMaterial []byte     `json:"-"` // Never expose in JSON
	KeyLength   int        `json:"key_length"`
	Fingerprint string     `json:"fingerprint"`
	GeneratedAt time.Time  `json:"generated_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// SessionCreateRequest represents a request to create a new QKD session
type SessionCreateRequest struct {
	AliceID        string             `json:"alice_id"`
	Qubits         int                `json:"qubits,omitempty"`
	RevealFraction float64            `json:"reveal_fraction,omitempty"`
	// Threshold is nil for the configured default. An explicit 0 tolerates
	// no mismatches.
	Threshold      *float64           `json:"threshold,omitempty"`
	Eavesdropper   bool               `json:"eavesdropper,omitempty"`
	Backend        QuantumBackendType `json:"backend,omitempty"`
	TTLMinutes     int                `json:"ttl_minutes,omitempty"`
}

// SessionJoinRequest represents a request from Bob to join a session
type SessionJoinRequest struct {
	SessionID string `json:"session_id"`
	BobID     string `json:"bob_id"`
}

// SessionResponse represents the response when creating or querying a session
type SessionResponse struct {
	Session *QKDSession `json:"session"`
	Error   string      `json:"error,omitempty"`
}

// KeyResponse represents the response when requesting a generated key
type KeyResponse struct {
	KeyID       string    `json:"key_id"`
	SessionID   string    `json:"session_id"`
	KeyHex      string    `json:"key_hex,omitempty"`
	KeyLength   int       `json:"key_length"`
	Fingerprint string    `json:"fingerprint"`
	ExpiresAt   time.Time `json:"expires_at"`
	Error       string    `json:"error,omitempty"`
}

// Validate validates a session create request and fills in defaults. The
// protocol parameters themselves are checked again by the protocol.
func (r *SessionCreateRequest) Validate() error {
	if r.AliceID == "" {
		return ErrInvalidAliceID
	}

	if r.Qubits == 0 {
		r.Qubits = 100
	}
	if r.Qubits < MinQubits || r.Qubits > MaxQubits {
		return ErrInvalidQubits
	}

	if r.RevealFraction == 0 {
		r.RevealFraction = 0.2
	}

	if r.Backend == "" {
		r.Backend = BackendSimulator
	}
	if r.Backend != BackendSimulator && r.Backend != BackendShots {
		return ErrInvalidBackend
	}

	// Default TTL is 24 hours
	if r.TTLMinutes == 0 {
		r.TTLMinutes = 1440
	}

	if r.TTLMinutes < 1 || r.TTLMinutes > 10080 { // Max 7 days
		return ErrInvalidTTL
	}

	return nil
}

// Validate validates a session join request
func (r *SessionJoinRequest) Validate() error {
	if r.SessionID == "" {
		return ErrInvalidSessionID
	}

	if r.BobID == "" {
		return ErrInvalidBobID
	}

	return nil
}

// QKDError is a session-layer error
type QKDError struct {
	Message string
}

func (e *QKDError) Error() string {
	return e.Message
}

var (
	ErrInvalidAliceID    = &QKDError{"invalid Alice ID"}
	ErrInvalidBobID      = &QKDError{"invalid Bob ID"}
	ErrInvalidSessionID  = &QKDError{"invalid session ID"}
	ErrInvalidQubits     = &QKDError{"qubit count must be between 8 and 1048576"}
	ErrInvalidBackend    = &QKDError{"backend must be simulator or shots"}
	ErrInvalidTTL        = &QKDError{"TTL must be between 1 and 10080 minutes"}
	ErrSessionNotFound   = &QKDError{"session not found"}
	ErrSessionExpired    = &QKDError{"session has expired"}
	ErrSessionNotActive  = &QKDError{"session is not active"}
	ErrKeyNotFound       = &QKDError{"key not found"}
	ErrKeyExpired        = &QKDError{"key has expired"}
	ErrUnauthorized      = &QKDError{"unauthorized access"}
	ErrSessionInProgress = &QKDError{"session already in progress"}
)
