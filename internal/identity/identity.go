// Package identity resolves the authenticated user of a request.
package identity

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// TokenVerifier validates a bearer token and returns its subject user ID.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

type contextKey int

const (
	userIDKey contextKey = iota
)

// UserIDFromContext extracts the user ID from the request context.
// It returns 0 when the request is unauthenticated.
func UserIDFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(userIDKey).(int64); ok {
		return v
	}
	return 0
}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware rejects requests without a valid bearer token and injects the
// token's user ID into the request context.
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
