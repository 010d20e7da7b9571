package domain

import (
	"context"
	"errors"
)

var ErrUserNotFound = errors.New("user not found")

// User is the identity snapshot used for message attribution
type User struct {
	ID          int64
	DisplayName string
	AvatarURL   string
}

// UserRepository resolves user identities
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
}

// Actor is whoever performs a request: a logged-in user or an anonymous guest
type Actor struct {
	UserID int64
}

// Anonymous reports whether the actor has no authenticated session.
func (a Actor) Anonymous() bool {
	return a.UserID <= 0
}
