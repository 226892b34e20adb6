package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"expensetracker/internal/log"
)

type contextKey struct{}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the authenticated user id stored by Middleware.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok && id > 0
}

// Middleware rejects requests without a valid "Authorization: Bearer" token.
func Middleware(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				unauthorized(w, r, "Missing Authorization header")
				return
			}

			userID, err := issuer.Parse(strings.TrimSpace(token))
			if err != nil {
				slog.WarnContext(r.Context(), "Rejected bearer token",
					log.FieldComponent, log.ComponentAuth,
					log.FieldError, err)
				unauthorized(w, r, "Invalid or expired token")
				return
			}

			ctx := WithUserID(r.Context(), userID)
			ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUserID, userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="expensetracker"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": message})
}
