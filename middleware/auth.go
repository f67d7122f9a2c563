package middleware

import (
	"collabdocs/core"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
)

type contextKey string

const UserContextKey = contextKey("user")

// SessionToken extracts the opaque session token from a request: the
// "session" cookie set at login, or an Authorization: Bearer header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie("session"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}

// AuthSession gates a route group on a valid, unexpired session and puts the
// session's user in the request context.
func AuthSession(sessions core.SessionStore, users core.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Unauthorized"})
				return
			}

			session, err := sessions.LookupSession(r.Context(), token)
			if err != nil || session.ExpiresAt.Before(time.Now()) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Invalid session"})
				return
			}

			user, err := users.GetUser(r.Context(), session.UserID)
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Invalid session"})
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user placed by AuthSession.
func UserFromContext(ctx context.Context) (*core.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*core.User)
	return user, ok
}
