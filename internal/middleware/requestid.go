// Package middleware provides the HTTP cross-cutting concerns shared by the
// ask surface: request IDs, per-client rate limiting, and access logging.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// maxInboundIDLen caps caller-supplied X-Request-ID values; anything longer
// is replaced rather than truncated.
const maxInboundIDLen = 64

// RequestID assigns a correlation ID to every request. A well-formed
// inbound X-Request-ID is reused so callers can trace their own requests;
// otherwise a fresh UUID is minted. The ID is echoed on the response and
// stored in the request context for log lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID accepts only IDs that are safe to echo into headers and
// log lines. Control characters would allow log forging.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxInboundIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// RequestIDFromContext returns the request's correlation ID, or "" when the
// middleware did not run.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
