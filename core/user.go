package core

import (
	"context"
	"time"
)

type (
	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	// UserStore defines the persistence layer for user accounts.
	UserStore interface {
		CreateUser(ctx context.Context, user *User) error
		GetUser(ctx context.Context, id string) (*User, error)
		GetUserByEmail(ctx context.Context, email string) (*User, error)
	}
)
