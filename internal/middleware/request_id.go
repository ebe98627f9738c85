// Package middleware provides the HTTP middleware chain: request
// identity, logging, recovery, auth, scopes, rate limits, CORS, and
// security headers.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Correlation headers. The request ID identifies one request; the trace
// ID, when a caller supplies one, links requests across services.
const (
	RequestIDHeader = "X-Request-ID"
	TraceIDHeader   = "X-Trace-ID"
)

type requestIDKey struct{}
type traceIDKey struct{}

// RequestID tags each request with a unique ID. An incoming
// X-Request-ID is kept so callers can correlate; both IDs are echoed on
// the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)

		if traceID := r.Header.Get(TraceIDHeader); traceID != "" {
			w.Header().Set(TraceIDHeader, traceID)
			ctx = context.WithValue(ctx, traceIDKey{}, traceID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID, or "" outside the middleware.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// GetTraceID returns the caller-supplied trace ID, or "".
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
