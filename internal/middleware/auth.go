// internal/middleware/auth.go

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Furiten/riichi-api/internal/auth"
	"github.com/google/uuid"
)

// EventTokenCookie carries the event admin token for browser clients.
const EventTokenCookie = "event_token"

type ctxKey int

const eventIDKey ctxKey = iota

// RequireEventToken rejects requests without a valid event admin token. The
// token comes from the Authorization bearer header or the event_token cookie.
// The authenticated event id is stored in the request context.
func RequireEventToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			if c, err := r.Cookie(EventTokenCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			http.Error(w, "missing event token", http.StatusUnauthorized)
			return
		}
		sub, err := auth.AuthenticateEventToken(token)
		if err != nil {
			http.Error(w, "invalid event token", http.StatusUnauthorized)
			return
		}
		eventID, err := uuid.Parse(sub)
		if err != nil {
			http.Error(w, "invalid event token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithEventID(r.Context(), eventID)))
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// WithEventID stores the authenticated event id.
func WithEventID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, eventIDKey, id)
}

// EventID returns the event id stored by RequireEventToken.
func EventID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(eventIDKey).(uuid.UUID)
	return id, ok
}
