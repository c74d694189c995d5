package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Middleware validates JWTs and enforces RBAC.
type Middleware struct {
	Secret []byte
	Policy Policy
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, Policy: policy}
}

// Authorize checks the request credential against the required role.
func (m *Middleware) Authorize(r *http.Request) (*Claims, *AuthorizationError) {
	required, ok := m.Policy.RequiredRole(r)
	if !ok {
		return nil, nil
	}
	claims, err := ParseJWT(extractBearer(r), m.Secret)
	if err != nil {
		return nil, unauthorized(err)
	}
	role, _ := NormalizeRole(claims.Role)
	if !RoleAtLeast(role, required) {
		return claims, forbidden()
	}
	return claims, nil
}

// Wrap applies auth and RBAC to the handler. Rejections are written as
// {"success":false,"error":...}.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, authErr := m.Authorize(r)
		if authErr != nil {
			writeAuthError(w, authErr)
			return
		}
		if claims == nil {
			next.ServeHTTP(w, r)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		ctx := WithIdentity(r.Context(), role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeAuthError(w http.ResponseWriter, err *AuthorizationError) {
	message := "unauthorized"
	if errors.Is(err, ErrForbidden) {
		message = "forbidden"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
