package http

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/natuspati/jeopardy-api/internal/auth"
	"github.com/natuspati/jeopardy-api/internal/config"
	"github.com/natuspati/jeopardy-api/internal/store"
	"github.com/natuspati/jeopardy-api/internal/store/sqlite"
	"github.com/natuspati/jeopardy-api/internal/ws"
)

// testEnv bundles the server under test with direct handles for seeding.
type testEnv struct {
	server  *httptest.Server
	store   store.Store
	auth    *auth.Service
	manager *ws.ConnectionManager
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st
}

// startTestServer starts the full router backed by an in-memory store, no
// cache and the given duplicate-session policy.
func startTestServer(t *testing.T, supersede bool) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	st := createTestStore(t)

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)
	manager := ws.NewConnectionManager(&logger)

	cfg := config.Default()
	cfg.SupersedeConnections = supersede
	cfg.PageSize = 2

	server := NewServer(cfg, &logger, authService, st, nil, manager)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		server:  ts,
		store:   st,
		auth:    authService,
		manager: manager,
	}
}

// registerAndLogin creates a user through the API and returns a bearer token.
func (env *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()

	body := map[string]string{"username": username, "password": "password123"}
	resp := env.request(t, http.MethodPost, "/api/v1/users", "", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: unexpected status %d", username, resp.StatusCode)
	}

	resp = env.request(t, http.MethodPost, "/api/v1/token", "", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: unexpected status %d", username, resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	return authResp.Token
}

// request issues a JSON request against the test server.
func (env *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req, err := http.NewRequest(method, env.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// decodeBody decodes a JSON response body into dst and closes the body.
func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}
