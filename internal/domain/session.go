package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Session represents a cookie session issued by the host site
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	Nonce     string    `json:"nonce"` // CSRF nonce sent back as X-WP-Nonce
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRepository defines the interface for session data access
type SessionRepository interface {
	GetByToken(ctx context.Context, token string) (*Session, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
