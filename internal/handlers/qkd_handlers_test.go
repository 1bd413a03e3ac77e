package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jaskrrish/Go-BB84/internal/models/qkd"
	qkdcore "github.com/jaskrrish/Go-BB84/internal/qkd"
	"github.com/jaskrrish/Go-BB84/internal/qkd/quantum"
	"github.com/jaskrrish/Go-BB84/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	sm := qkdcore.NewSessionManager(quantum.NewSeededSource(1), store.NewMemoryStore(), qkdcore.ManagerOptions{MaxAttempts: 2})
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewQKDHandler(sm))
	srv := httptest.NewServer(LoggingMiddleware(mux))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body interface{}, header map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

// startSession initiates a session as Alice and joins it as Bob
func startSession(t *testing.T, srv *httptest.Server, req qkd.SessionCreateRequest) uuid.UUID {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/api/v1/qkd/session/initiate", req, nil)
	expectStatus(t, resp, http.StatusCreated)
	var created qkd.SessionResponse
	decode(t, resp, &created)

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/qkd/session/join", qkd.SessionJoinRequest{
		SessionID: created.Session.SessionID.String(),
		BobID:     "bob",
	}, nil)
	expectStatus(t, resp, http.StatusOK)
	var joined qkd.SessionResponse
	decode(t, resp, &joined)
	if joined.Session.Status != qkd.SessionActive {
		t.Fatalf("joined session status %s, want %s", joined.Session.Status, qkd.SessionActive)
	}
	return created.Session.SessionID
}

// TestKeyExchangeFlow walks a session from initiation to key revocation
func TestKeyExchangeFlow(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv, qkd.SessionCreateRequest{AliceID: "alice"})
	base := srv.URL + "/api/v1/qkd"

	resp := do(t, http.MethodPost, base+"/session/"+id.String()+"/execute", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	var executed struct {
		Session     qkd.QKDSession `json:"session"`
		KeyID       string         `json:"key_id"`
		Fingerprint string         `json:"fingerprint"`
	}
	decode(t, resp, &executed)
	if executed.Session.Status != qkd.SessionCompleted {
		t.Errorf("session status %s, want %s", executed.Session.Status, qkd.SessionCompleted)
	}

	resp = do(t, http.MethodGet, base+"/session/"+id.String(), nil, nil)
	expectStatus(t, resp, http.StatusOK)

	keyURL := base + "/key/" + executed.KeyID

	resp = do(t, http.MethodGet, keyURL, nil, map[string]string{"X-User-ID": "alice"})
	expectStatus(t, resp, http.StatusOK)
	var key qkd.KeyResponse
	decode(t, resp, &key)
	if key.KeyHex == "" || key.KeyLength == 0 {
		t.Errorf("empty key in response: %+v", key)
	}
	if key.Fingerprint != executed.Fingerprint {
		t.Errorf("fingerprint %s, want %s", key.Fingerprint, executed.Fingerprint)
	}

	resp = do(t, http.MethodGet, keyURL, nil, nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = do(t, http.MethodGet, keyURL, nil, map[string]string{"X-User-ID": "eve"})
	expectStatus(t, resp, http.StatusForbidden)

	resp = do(t, http.MethodDelete, keyURL, nil, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = do(t, http.MethodDelete, base+"/key/"+uuid.New().String(), nil, nil)
	expectStatus(t, resp, http.StatusNotFound)

	// A completed session cannot run again.
	resp = do(t, http.MethodPost, base+"/session/"+id.String()+"/execute", nil, nil)
	expectStatus(t, resp, http.StatusConflict)
}

// TestExecuteWithEavesdropper expects 409 with the aborted session
func TestExecuteWithEavesdropper(t *testing.T) {
	srv := newTestServer(t)
	id := startSession(t, srv, qkd.SessionCreateRequest{AliceID: "alice", Qubits: 500, Eavesdropper: true})

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/qkd/session/"+id.String()+"/execute", nil, nil)
	expectStatus(t, resp, http.StatusConflict)

	var body qkd.SessionResponse
	decode(t, resp, &body)
	if body.Session == nil || body.Session.Status != qkd.SessionAborted {
		t.Fatalf("expected aborted session, got %+v", body.Session)
	}
	if !body.Session.Detected || body.Session.Attempts != 2 {
		t.Errorf("detected %v after %d attempts, want true after 2", body.Session.Detected, body.Session.Attempts)
	}
	if body.Error == "" {
		t.Error("expected an error message")
	}
}

func TestRequestErrors(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1/qkd"

	tests := []struct {
		name   string
		method string
		url    string
		body   interface{}
		want   int
	}{
		{"initiate with GET", http.MethodGet, base + "/session/initiate", nil, http.StatusMethodNotAllowed},
		{"initiate without Alice", http.MethodPost, base + "/session/initiate", qkd.SessionCreateRequest{}, http.StatusBadRequest},
		{"initiate with bad fraction", http.MethodPost, base + "/session/initiate", qkd.SessionCreateRequest{AliceID: "a", RevealFraction: 2}, http.StatusBadRequest},
		{"join unknown session", http.MethodPost, base + "/session/join", qkd.SessionJoinRequest{SessionID: uuid.New().String(), BobID: "bob"}, http.StatusNotFound},
		{"join with bad ID", http.MethodPost, base + "/session/join", qkd.SessionJoinRequest{SessionID: "nope", BobID: "bob"}, http.StatusBadRequest},
		{"get bad session ID", http.MethodGet, base + "/session/nope", nil, http.StatusBadRequest},
		{"get unknown session", http.MethodGet, base + "/session/" + uuid.New().String(), nil, http.StatusNotFound},
		{"execute unknown session", http.MethodPost, base + "/session/" + uuid.New().String() + "/execute", nil, http.StatusNotFound},
		{"unknown key", http.MethodGet, base + "/key/" + uuid.New().String(), nil, http.StatusNotFound},
		{"unknown path", http.MethodGet, srv.URL + "/nowhere", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, tt.url, tt.body, map[string]string{"X-User-ID": "alice"})
			expectStatus(t, resp, tt.want)
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/", "/health", "/api/v1/qkd/health"} {
		resp := do(t, http.MethodGet, srv.URL+path, nil, nil)
		expectStatus(t, resp, http.StatusOK)
		var body map[string]interface{}
		decode(t, resp, &body)
		if len(body) == 0 {
			t.Errorf("%s: empty body", path)
		}
	}
}
