// Package trace assigns request IDs and writes the start/end access log.
package trace

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"expensetracker/internal/log"
)

type contextKey struct{}

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// Middleware tags each request with an ID, either the caller's (when it is a
// valid UUID) or a fresh one, and logs its start and completion. The
// request-scoped logger in the context carries the ID.
func Middleware(extractIP func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			clientIP := ""
			if extractIP != nil {
				clientIP = extractIP(r)
			}

			requestID := incomingID(r)
			w.Header().Set(HeaderRequestID, requestID)

			logger := log.FromContext(r.Context()).With(log.FieldRequestID, requestID)
			ctx := context.WithValue(r.Context(), contextKey{}, requestID)
			ctx = log.WithLogger(ctx, logger)
			r = r.WithContext(ctx)

			sl := log.NewStructuredLogger(logger)
			sl.LogHTTPStart(ctx, r, clientIP)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			sl.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
		})
	}
}

func incomingID(r *http.Request) string {
	if id, err := uuid.Parse(r.Header.Get(HeaderRequestID)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestID returns the ID assigned by Middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
