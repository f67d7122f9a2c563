package core

import (
	"context"
	"time"
)

type (
	// Session maps an opaque token to a user identity and an expiry. The
	// collaboration channel reads it exactly once, at join time; there is no
	// mid-connection re-validation.
	Session struct {
		Token     string    `json:"token"`
		UserID    string    `json:"userId"`
		ExpiresAt time.Time `json:"expiresAt"`
	}

	// SessionStore defines the persistence layer for login sessions.
	SessionStore interface {
		CreateSession(ctx context.Context, session *Session) error

		// LookupSession returns the session for a token, or an error if no
		// such token exists. Expiry is the caller's concern.
		LookupSession(ctx context.Context, token string) (*Session, error)

		DeleteSession(ctx context.Context, token string) error
	}
)
