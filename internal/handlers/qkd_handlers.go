package handlers

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/jaskrrish/Go-BB84/internal/models/qkd"
	qkdcore "github.com/jaskrrish/Go-BB84/internal/qkd"
)

// QKDHandler manages QKD-related HTTP requests
type QKDHandler struct {
	sessionManager *qkdcore.SessionManager
}

// NewQKDHandler creates a new QKD handler around a session manager
func NewQKDHandler(sm *qkdcore.SessionManager) *QKDHandler {
	return &QKDHandler{sessionManager: sm}
}

// InitiateSessionHandler handles POST /api/v1/qkd/session/initiate
// Alice initiates a new QKD session
func (h *QKDHandler) InitiateSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req qkd.SessionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.sessionManager.CreateSession(&req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, qkd.SessionResponse{
		Session: session,
	})
}

// JoinSessionHandler handles POST /api/v1/qkd/session/join
// Bob joins an existing QKD session
func (h *QKDHandler) JoinSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req qkd.SessionJoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	session, err := h.sessionManager.JoinSession(sessionID, req.BobID)
	if err != nil {
		respondWithError(w, sessionErrorStatus(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, qkd.SessionResponse{
		Session: session,
	})
}

// ExecuteKeyExchangeHandler handles POST /api/v1/qkd/session/{id}/execute
// Runs BB84 for an active session. Detected eavesdropping is reported as
// 409 together with the aborted session.
func (h *QKDHandler) ExecuteKeyExchangeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID, ok := pathID(w, r, "session")
	if !ok {
		return
	}

	key, err := h.sessionManager.ExecuteKeyExchange(r.Context(), sessionID)
	if qkdcore.IsEavesdropping(err) {
		session, _ := h.sessionManager.GetSession(sessionID)
		respondWithJSON(w, http.StatusConflict, qkd.SessionResponse{
			Session: session,
			Error:   err.Error(),
		})
		return
	}
	if err != nil {
		respondWithError(w, sessionErrorStatus(err), "Key exchange failed: "+err.Error())
		return
	}

	session, err := h.sessionManager.GetSession(sessionID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve session")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"session":     session,
		"key_id":      key.KeyID.String(),
		"fingerprint": key.Fingerprint,
		"message":     "Quantum key generated successfully!",
	})
}

// GetSessionHandler handles GET /api/v1/qkd/session/{id}
// Retrieves information about a specific session
func (h *QKDHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID, ok := pathID(w, r, "session")
	if !ok {
		return
	}

	session, err := h.sessionManager.GetSession(sessionID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, qkd.SessionResponse{
		Session: session,
	})
}

// GetKeyHandler handles GET /api/v1/qkd/key/{id}
// Retrieves a generated quantum key (requires authentication)
func (h *QKDHandler) GetKeyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	keyID, ok := pathID(w, r, "key")
	if !ok {
		return
	}

	// Get user ID from header (in production, this would come from JWT token)
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondWithError(w, http.StatusUnauthorized, "User authentication required")
		return
	}

	key, err := h.sessionManager.GetKey(keyID, userID)
	if err != nil {
		respondWithError(w, keyErrorStatus(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, qkd.KeyResponse{
		KeyID:       key.KeyID.String(),
		SessionID:   key.SessionID.String(),
		KeyHex:      hex.EncodeToString(key.KeyMaterial),
		KeyLength:   key.KeyLength,
		Fingerprint: key.Fingerprint,
		ExpiresAt:   key.ExpiresAt,
	})
}

// RevokeKeyHandler handles DELETE /api/v1/qkd/key/{id}
// Revokes a quantum key
func (h *QKDHandler) RevokeKeyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	keyID, ok := pathID(w, r, "key")
	if !ok {
		return
	}

	if err := h.sessionManager.RevokeKey(keyID); err != nil {
		respondWithError(w, keyErrorStatus(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Key revoked successfully",
	})
}

// HealthCheckHandler handles GET /api/v1/qkd/health
// Returns health status of the QKD service
func (h *QKDHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "Quantum Key Distribution",
		"protocol": "BB84",
		"version":  Version,
	})
}

// pathID parses the UUID following /api/v1/qkd/{kind}/ in the request path.
// It writes a 400 response and returns false if there is none.
func pathID(w http.ResponseWriter, r *http.Request, kind string) (uuid.UUID, bool) {
	// "", "api", "v1", "qkd", kind, id, ...
	pathParts := strings.Split(r.URL.Path, "/")
	if len(pathParts) < 6 || pathParts[4] != kind {
		respondWithError(w, http.StatusBadRequest, "Invalid URL format")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(pathParts[5])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid "+kind+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, qkd.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, qkd.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, qkd.ErrSessionInProgress), errors.Is(err, qkd.ErrSessionNotActive):
		return http.StatusConflict
	case errors.Is(err, qkd.ErrInvalidBobID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func keyErrorStatus(err error) int {
	switch {
	case errors.Is(err, qkd.ErrKeyNotFound), errors.Is(err, qkd.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, qkd.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, qkd.ErrKeyExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		glog.Errorf("encoding response: %v", err)
	}
}

// respondWithError sends an error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	if statusCode >= http.StatusInternalServerError {
		glog.Errorf("request failed: %s", message)
	}
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
