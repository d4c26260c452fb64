package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Auth trusts the principal id forwarded by the identity gateway. The gateway
// has already verified the credential; this backend performs no further token
// verification and treats the id as the owner for every resource check.
type Auth struct {
	// SkipPaths are path prefixes served without a principal (health checks,
	// webhook callbacks, internal event sockets).
	SkipPaths []string
}

func NewAuth() *Auth {
	return &Auth{
		SkipPaths: []string{
			"/health",
			"/webhook/stripe",
			"/api/events",
		},
	}
}

// Middleware rejects requests that carry no principal id with 401 and stores
// the id in the request context for handlers to read via UserID.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.shouldSkip(r) {
			next.ServeHTTP(w, r)
			return
		}

		userID := principalID(r)
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Authentication required"})
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) shouldSkip(r *http.Request) bool {
	for _, p := range a.SkipPaths {
		if strings.HasPrefix(r.URL.Path, p) {
			return true
		}
	}
	return false
}

// principalID reads the gateway-forwarded id: X-User-ID preferred, opaque
// bearer token accepted as a fallback for direct internal calls.
func principalID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// UserID returns the principal id stored by Middleware, or "" when absent.
func UserID(r *http.Request) string {
	if v, ok := r.Context().Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects a principal id into a request context. Test helper used
// by handler tests that bypass the middleware.
func WithUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
}
