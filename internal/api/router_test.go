// Fleetwatch - Real-time Vehicle Position Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/fleetwatch/internal/auth"
	"github.com/tomtom215/fleetwatch/internal/authz"
	"github.com/tomtom215/fleetwatch/internal/config"
)

// newSecuredRouter builds the full router in jwt mode.
func newSecuredRouter(t *testing.T) (http.Handler, *auth.JWTManager, *testEnv) {
	t.Helper()
	cfg := testConfig()
	cfg.Security.AuthMode = config.AuthModeJWT

	mgr, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	enforcer, err := authz.NewEnforcer(authz.DefaultEnforcerConfig())
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	t.Cleanup(enforcer.Close)

	env := newTestEnv(t)
	env.handler = NewHandler(env.tracker, env.store, env.hub, fakeCache{status: "closed"}, mgr, cfg)
	router := NewRouter(
		env.handler,
		NewChiMiddleware(ChiMiddlewareConfigFromSecurity(cfg.Security)),
		auth.NewMiddleware(mgr, cfg.Security.AuthMode, WriteError),
		authz.NewMiddleware(enforcer, WriteError),
	)
	return router.Setup(), mgr, env
}

func token(t *testing.T, mgr *auth.JWTManager, role string, vehicleID int64) string {
	t.Helper()
	tok, _, err := mgr.GenerateToken("test-"+role, role, vehicleID)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func TestRouter_JWTMode(t *testing.T) {
	handler, mgr, _ := newSecuredRouter(t)

	device := token(t, mgr, auth.RoleDevice, 1)
	observer := token(t, mgr, auth.RoleObserver, 0)
	admin := token(t, mgr, auth.RoleAdmin, 0)
	position := `{"vehicle_id": 1, "latitude": -23.55, "longitude": -46.63}`

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		token      string
		wantStatus int
	}{
		{"no token", http.MethodGet, "/api/v1/vehicles", "", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/v1/vehicles", "", "not-a-jwt", http.StatusUnauthorized},
		{"observer lists vehicles", http.MethodGet, "/api/v1/vehicles", "", observer, http.StatusOK},
		{"observer queries nearby", http.MethodGet, "/api/v1/positions/nearby?lat=1&lng=1", "", observer, http.StatusOK},
		{"observer cannot report", http.MethodPost, "/api/v1/positions", position, observer, http.StatusForbidden},
		{"observer cannot command", http.MethodPost, "/api/v1/vehicles/1/commands", `{"command":"x"}`, observer, http.StatusForbidden},
		{"device reports for itself", http.MethodPost, "/api/v1/positions", position, device, http.StatusCreated},
		{"device cannot report for another", http.MethodPost, "/api/v1/positions", `{"vehicle_id": 2, "latitude": 1, "longitude": 1}`, device, http.StatusForbidden},
		{"device cannot list vehicles", http.MethodGet, "/api/v1/vehicles", "", device, http.StatusForbidden},
		{"admin reports for any vehicle", http.MethodPost, "/api/v1/positions", `{"vehicle_id": 3, "latitude": 1, "longitude": 1}`, admin, http.StatusCreated},
		{"admin commands", http.MethodPost, "/api/v1/vehicles/1/commands", `{"command":"x"}`, admin, http.StatusAccepted},
		{"health is public", http.MethodGet, "/health", "", "", http.StatusOK},
		{"metrics are public", http.MethodGet, "/metrics", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestRouter_TokenRouteOnlyInJWTMode(t *testing.T) {
	env := newTestEnv(t)
	rec := do(t, env.router(), http.MethodPost, "/api/v1/auth/token", map[string]string{"subject": "a", "role": "observer"})
	if rec.Code == http.StatusCreated {
		t.Fatal("token route should not issue tokens without jwt mode")
	}

	handler, _, _ := newSecuredRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{"subject":"ops","role":"observer"}`))
	req.Header.Set(ProvisioningSecretHeader, testConfig().Security.JWTSecret)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestRouter_RequestIDAndHeaders(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil)
	req.Header.Set("X-Request-ID", "trace-abc")
	rec := httptest.NewRecorder()
	env.router().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "trace-abc" {
		t.Errorf("X-Request-ID = %q, want trace-abc", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if env := decodeEnvelope(t, rec); env.Metadata.RequestID != "trace-abc" {
		t.Errorf("metadata.request_id = %q", env.Metadata.RequestID)
	}
}

func TestRouter_NotFoundEnvelope(t *testing.T) {
	env := newTestEnv(t)
	rec := do(t, env.router(), http.MethodGet, "/api/v2/nothing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestRateLimit(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	h := m.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if codes := hammer(h, 3); codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [204 204 429]", codes)
	}

	disabled := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 1, RateLimitDisabled: true})
	open := disabled.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for _, code := range hammer(open, 3) {
		if code != http.StatusNoContent {
			t.Errorf("disabled limiter returned %d", code)
		}
	}
}

// hammer sends n requests from one client address and returns the status codes.
func hammer(h http.Handler, n int) []int {
	codes := make([]int, 0, n)
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil)
		req.RemoteAddr = "192.0.2.10:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	return codes
}
