package websocket

import (
	"collabdocs/core"
	"context"
	"errors"
	"time"
)

// Error text doubles as the payload of the "error" event, so the strings
// match what the editor frontend displays.
var (
	ErrUnauthorized   = errors.New("Unauthorized")
	ErrInvalidSession = errors.New("Invalid session")
	ErrJoinFailed     = errors.New("Failed to join document")
)

// Identity is the resolved owner of a validated session.
type Identity struct {
	UserID   string
	UserName string
}

// SessionValidator checks a session token against the session store. It is
// the only authorization check on the real-time path and runs exactly once
// per connection, at join time.
type SessionValidator struct {
	sessions core.SessionStore
	users    core.UserStore
	now      func() time.Time
}

// NewSessionValidator creates a validator backed by the given stores.
func NewSessionValidator(sessions core.SessionStore, users core.UserStore) *SessionValidator {
	return &SessionValidator{
		sessions: sessions,
		users:    users,
		now:      time.Now,
	}
}

// Validate resolves a token to an identity. An empty token is ErrUnauthorized;
// an unknown or expired token is ErrInvalidSession. The lookup is read-only.
func (v *SessionValidator) Validate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}

	session, err := v.sessions.LookupSession(ctx, token)
	if err != nil {
		return Identity{}, ErrInvalidSession
	}
	if session.ExpiresAt.Before(v.now()) {
		return Identity{}, ErrInvalidSession
	}

	user, err := v.users.GetUser(ctx, session.UserID)
	if err != nil {
		// The session references an account the user store no longer has.
		return Identity{}, ErrInvalidSession
	}

	return Identity{UserID: user.ID, UserName: user.Name}, nil
}
