package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestHandler(secret []byte, called *bool) http.Handler {
	policy := NewDefaultPolicy([]string{"/healthz"}, nil)
	mw := NewMiddleware(secret, policy)
	return mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if RoleFromContext(r.Context()) == "" {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	called := false
	handler := newTestHandler([]byte("test-secret"), &called)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/distributions/run", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if called {
		t.Fatalf("handler must not run without a credential")
	}
	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["success"] != false || body["error"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	called := false
	handler := newTestHandler([]byte("test-secret"), &called)
	token := mustToken(t, []byte("other-secret"), "scheduler", time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/distributions/run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	called := false
	secret := []byte("test-secret")
	handler := newTestHandler(secret, &called)
	token := mustToken(t, secret, "scheduler", -time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/distributions/run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerForbiddenTrigger(t *testing.T) {
	called := false
	secret := []byte("test-secret")
	handler := newTestHandler(secret, &called)
	token := mustToken(t, secret, "viewer", time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/distributions/run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
	if called {
		t.Fatalf("handler must not run for a forbidden role")
	}
}

func TestAuthMiddleware_SchedulerAllowed(t *testing.T) {
	called := false
	secret := []byte("test-secret")
	handler := newTestHandler(secret, &called)
	token, err := IssueJWT(secret, "cron", RoleScheduler, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/distributions/run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ExemptPath(t *testing.T) {
	called := false
	handler := newTestHandler([]byte("test-secret"), &called)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if !called || resp.Code != http.StatusTeapot {
		t.Fatalf("expected exempt path to reach handler, got %d", resp.Code)
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleAtLeast(RoleAdmin, RoleScheduler) {
		t.Fatalf("admin should satisfy scheduler")
	}
	if RoleAtLeast(RoleViewer, RoleScheduler) {
		t.Fatalf("viewer should not satisfy scheduler")
	}
	if RoleAtLeast(Role("root"), RoleViewer) {
		t.Fatalf("unknown role should not satisfy viewer")
	}
}

func mustToken(t *testing.T, secret []byte, role string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
