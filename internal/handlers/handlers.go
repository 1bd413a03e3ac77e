package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
)

// Version is reported by the root and health endpoints
const Version = "1.0.0"

// HomeHandler handles requests to the root path
func HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the Go-BB84 key distribution API",
		"version": Version,
		"status":  "running",
	})
}

// HealthHandler handles health check requests
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "go-bb84-api",
	})
}

// RegisterRoutes wires every endpoint into mux
func RegisterRoutes(mux *http.ServeMux, h *QKDHandler) {
	mux.HandleFunc("/", HomeHandler)
	mux.HandleFunc("/health", HealthHandler)

	mux.HandleFunc("/api/v1/qkd/health", h.HealthCheckHandler)
	mux.HandleFunc("/api/v1/qkd/session/initiate", h.InitiateSessionHandler)
	mux.HandleFunc("/api/v1/qkd/session/join", h.JoinSessionHandler)
	mux.HandleFunc("/api/v1/qkd/session/", h.routeSession)
	mux.HandleFunc("/api/v1/qkd/key/", h.routeKey)
}

// routeSession dispatches /api/v1/qkd/session/{id}[/execute]
func (h *QKDHandler) routeSession(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/execute") {
		h.ExecuteKeyExchangeHandler(w, r)
		return
	}
	h.GetSessionHandler(w, r)
}

// routeKey dispatches /api/v1/qkd/key/{id}
func (h *QKDHandler) routeKey(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		h.RevokeKeyHandler(w, r)
		return
	}
	h.GetKeyHandler(w, r)
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs all incoming requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		glog.Infof("%s %s %s %d %v", r.Method, r.RequestURI, r.RemoteAddr, rec.status, time.Since(start))
	})
}
