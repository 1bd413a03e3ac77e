package qkd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/jaskrrish/Go-BB84/internal/models/qkd"
	"github.com/jaskrrish/Go-BB84/internal/qkd/crypto"
	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
	"github.com/jaskrrish/Go-BB84/internal/store"
)

// DefaultKeyTTL is how long an issued key stays retrievable
const DefaultKeyTTL = 24 * time.Hour

// ManagerOptions configures a SessionManager
type ManagerOptions struct {
	// MaxAttempts bounds how often an aborted exchange is rerun. Zero means 1.
	MaxAttempts int
	// KeyTTL is the lifetime of issued keys. Zero means DefaultKeyTTL.
	KeyTTL time.Duration
	// NoiseLevel is passed to every backend the manager builds
	NoiseLevel float64
	// Shots is the trial count for shot backends. Zero means quantum.DefaultShots.
	Shots int
	// Defaults fills protocol parameters a create request leaves at zero.
	// A zero Defaults means DefaultConfig.
	Defaults Config
	// Backend is used when a create request names none
	Backend quantum.BackendType
}

// SessionManager manages QKD sessions and orchestrates key generation
type SessionManager struct {
	sessions map[uuid.UUID]*qkd.QKDSession
	mutex    sync.RWMutex
	keys     store.KeyStore
	rand     quantum.Source
	opts     ManagerOptions
}

// NewSessionManager creates a new session manager. src is shared by every
// exchange the manager runs and is wrapped for concurrent use.
func NewSessionManager(src quantum.Source, keys store.KeyStore, opts ManagerOptions) *SessionManager {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.KeyTTL <= 0 {
		opts.KeyTTL = DefaultKeyTTL
	}
	if opts.Defaults == (Config{}) {
		opts.Defaults = DefaultConfig()
	}
	if opts.Backend == "" {
		opts.Backend = quantum.BackendSimulator
	}
	return &SessionManager{
		sessions: make(map[uuid.UUID]*qkd.QKDSession),
		keys:     keys,
		rand:     quantum.NewLockedSource(src),
		opts:     opts,
	}
}

// CreateSession creates a new QKD session initiated by Alice. Zero qubit
// count and reveal fraction, and a nil threshold, take the manager's defaults.
func (sm *SessionManager) CreateSession(req *qkd.SessionCreateRequest) (*qkd.QKDSession, error) {
	if req.Qubits == 0 {
		req.Qubits = sm.opts.Defaults.Qubits
	}
	if req.RevealFraction == 0 {
		req.RevealFraction = sm.opts.Defaults.RevealFraction
	}
	if req.Threshold == nil {
		threshold := sm.opts.Defaults.Threshold
		req.Threshold = &threshold
	}
	if req.Backend == "" {
		req.Backend = qkd.QuantumBackendType(sm.opts.Backend)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cfg := Config{
		Qubits:         req.Qubits,
		RevealFraction: req.RevealFraction,
		Threshold:      *req.Threshold,
		Eavesdropper:   req.Eavesdropper,
	}
	if err := cfg.Validate(); err != nil {
		return nil, &qkd.QKDError{Message: err.Error()}
	}

	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sessionID := uuid.New()
	now := time.Now()

	session := &qkd.QKDSession{
		SessionID:      sessionID,
		AliceID:        req.AliceID,
		Status:         qkd.SessionWaitingForBob,
		Backend:        req.Backend,
		Qubits:         req.Qubits,
		RevealFraction: req.RevealFraction,
		Threshold:      *req.Threshold,
		Eavesdropper:   req.Eavesdropper,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(req.TTLMinutes) * time.Minute),
	}

	sm.sessions[sessionID] = session
	glog.V(1).Infof("session %s created by %s (%d qubits, backend %s)", sessionID, req.AliceID, req.Qubits, req.Backend)

	return cloneSession(session), nil
}

// JoinSession allows Bob to join an existing session
func (sm *SessionManager) JoinSession(sessionID uuid.UUID, bobID string) (*qkd.QKDSession, error) {
	if bobID == "" {
		return nil, qkd.ErrInvalidBobID
	}

	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, qkd.ErrSessionNotFound
	}

	if time.Now().After(session.ExpiresAt) {
		session.Status = qkd.SessionAborted
		return nil, qkd.ErrSessionExpired
	}

	if session.Status != qkd.SessionWaitingForBob {
		return nil, qkd.ErrSessionInProgress
	}

	session.BobID = bobID
	session.Status = qkd.SessionActive
	glog.V(1).Infof("session %s joined by %s", sessionID, bobID)

	return cloneSession(session), nil
}

// ExecuteKeyExchange runs the BB84 protocol for an active session, rerunning
// aborted exchanges up to the configured attempt limit. On success Bob's
// distilled key is stored and returned. If every attempt detected
// eavesdropping the returned error satisfies IsEavesdropping.
func (sm *SessionManager) ExecuteKeyExchange(ctx context.Context, sessionID uuid.UUID) (*qkd.QuantumKey, error) {
	sm.mutex.Lock()
	session, exists := sm.sessions[sessionID]
	if !exists {
		sm.mutex.Unlock()
		return nil, qkd.ErrSessionNotFound
	}
	if time.Now().After(session.ExpiresAt) {
		session.Status = qkd.SessionAborted
		sm.mutex.Unlock()
		return nil, qkd.ErrSessionExpired
	}
	if session.Status != qkd.SessionActive {
		sm.mutex.Unlock()
		return nil, qkd.ErrSessionNotActive
	}
	session.Status = qkd.SessionRunning
	cfg := Config{
		Qubits:         session.Qubits,
		RevealFraction: session.RevealFraction,
		Threshold:      session.Threshold,
		Eavesdropper:   session.Eavesdropper,
	}
	backendType := quantum.BackendType(session.Backend)
	sm.mutex.Unlock()

	backend, err := quantum.NewBackend(backendType, sm.rand, quantum.BackendOptions{
		NoiseLevel: sm.opts.NoiseLevel,
		Shots:      sm.opts.Shots,
	})
	if err != nil {
		sm.fail(sessionID, err)
		return nil, err
	}
	bb84, err := NewBB84Protocol(backend, sm.rand, cfg)
	if err != nil {
		sm.fail(sessionID, err)
		return nil, err
	}

	out, attempts, err := bb84.RunWithRetry(ctx, sm.opts.MaxAttempts)
	if IsEavesdropping(err) {
		glog.Warningf("session %s aborted after %d attempts: %v", sessionID, attempts, err)
		sm.update(sessionID, func(s *qkd.QKDSession) {
			recordOutcome(s, out, attempts)
			s.Status = qkd.SessionAborted
			s.Message = err.Error()
		})
		return nil, err
	}
	if err != nil {
		sm.fail(sessionID, err)
		return nil, fmt.Errorf("key exchange failed: %w", err)
	}

	if len(out.SecretKey) == 0 {
		err := fmt.Errorf("key exchange failed: distilled key is empty (%d sifted bits)", out.SiftedKeyLength)
		sm.fail(sessionID, err)
		return nil, err
	}
	if rate, _ := quantum.CalculateBitError(out.SenderKey, out.SecretKey); rate > 0 {
		// Detection is statistical; a small sample can let an interceptor through.
		glog.Warningf("session %s: %.2f%% of final key bits differ between Alice and Bob", sessionID, rate*100)
	}

	now := time.Now()
	key := &qkd.QuantumKey{
		KeyID:       uuid.New(),
		SessionID:   sessionID,
		KeyMaterial: quantum.BitsToBytes(out.SecretKey),
		KeyLength:   len(out.SecretKey),
		Fingerprint: crypto.Fingerprint(out.SecretKey),
		GeneratedAt: now,
		ExpiresAt:   now.Add(sm.opts.KeyTTL),
		IsActive:    true,
	}
	if err := sm.keys.Put(key); err != nil {
		sm.fail(sessionID, err)
		return nil, fmt.Errorf("storing key: %w", err)
	}

	sm.update(sessionID, func(s *qkd.QKDSession) {
		recordOutcome(s, out, attempts)
		s.Status = qkd.SessionCompleted
		s.FinalKeyLength = key.KeyLength
		s.KeyID = &key.KeyID
		s.Message = fmt.Sprintf("key distilled: %d bits, error rate %.2f%% over %d revealed bits",
			key.KeyLength, out.Detection.ErrorRate*100, out.Detection.Sampled)
	})
	glog.V(1).Infof("session %s completed: key %s (%d bits) after %d attempts", sessionID, key.KeyID, key.KeyLength, attempts)

	return key, nil
}

func recordOutcome(s *qkd.QKDSession, out *Outcome, attempts int) {
	s.Attempts = attempts
	if out == nil {
		return
	}
	s.SiftedKeyLength = out.SiftedKeyLength
	s.Phases = make([]string, len(out.Phases))
	for i, p := range out.Phases {
		s.Phases[i] = p.String()
	}
	if d := out.Detection; d != nil {
		s.ErrorRate = d.ErrorRate
		s.MissProbability = d.MissProbability()
		s.Detected = d.Detected
	}
}

func (sm *SessionManager) fail(sessionID uuid.UUID, err error) {
	glog.Errorf("session %s failed: %v", sessionID, err)
	sm.update(sessionID, func(s *qkd.QKDSession) {
		s.Status = qkd.SessionFailed
		s.Message = err.Error()
	})
}

// update applies fn to a session and stamps the completion time of
// terminal states
func (sm *SessionManager) update(sessionID uuid.UUID, fn func(*qkd.QKDSession)) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return
	}
	fn(session)
	switch session.Status {
	case qkd.SessionCompleted, qkd.SessionFailed, qkd.SessionAborted:
		now := time.Now()
		session.CompletedAt = &now
	}
}

// GetSession retrieves a session by ID
func (sm *SessionManager) GetSession(sessionID uuid.UUID) (*qkd.QKDSession, error) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, qkd.ErrSessionNotFound
	}

	return cloneSession(session), nil
}

// GetKey retrieves a generated key by ID
func (sm *SessionManager) GetKey(keyID uuid.UUID, userID string) (*qkd.QuantumKey, error) {
	key, err := sm.keys.Get(keyID)
	if err != nil {
		return nil, err
	}

	// Verify authorization (user must be Alice or Bob)
	sm.mutex.RLock()
	session, exists := sm.sessions[key.SessionID]
	sm.mutex.RUnlock()
	if !exists {
		return nil, qkd.ErrSessionNotFound
	}
	if session.AliceID != userID && session.BobID != userID {
		return nil, qkd.ErrUnauthorized
	}

	if time.Now().After(key.ExpiresAt) {
		if key.IsActive {
			key.IsActive = false
			if err := sm.keys.Put(key); err != nil {
				glog.Errorf("deactivating expired key %s: %v", keyID, err)
			}
		}
		return nil, qkd.ErrKeyExpired
	}

	return key, nil
}

// RevokeKey marks a key as inactive
func (sm *SessionManager) RevokeKey(keyID uuid.UUID) error {
	key, err := sm.keys.Get(keyID)
	if err != nil {
		return err
	}

	key.IsActive = false
	now := time.Now()
	key.UsedAt = &now

	return sm.keys.Put(key)
}

// CleanupExpiredSessions removes expired sessions and keys and returns how
// many were removed
func (sm *SessionManager) CleanupExpiredSessions() int {
	now := time.Now()
	removed := 0

	sm.mutex.Lock()
	for id, session := range sm.sessions {
		if now.After(session.ExpiresAt) {
			delete(sm.sessions, id)
			removed++
		}
	}
	sm.mutex.Unlock()

	keys, err := sm.keys.List()
	if err != nil {
		glog.Errorf("listing keys for cleanup: %v", err)
		return removed
	}
	for _, key := range keys {
		if now.After(key.ExpiresAt) {
			if err := sm.keys.Delete(key.KeyID); err != nil {
				glog.Errorf("deleting expired key %s: %v", key.KeyID, err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		glog.V(1).Infof("cleanup removed %d expired sessions and keys", removed)
	}
	return removed
}

// RunCleanup calls CleanupExpiredSessions every interval until ctx is done
func (sm *SessionManager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupExpiredSessions()
		}
	}
}

func cloneSession(s *qkd.QKDSession) *qkd.QKDSession {
	c := *s
	c.Phases = append([]string(nil), s.Phases...)
	if s.KeyID != nil {
		id := *s.KeyID
		c.KeyID = &id
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
