package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"motorlist-chat/internal/domain"

	"github.com/google/uuid"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

// nextID generates a unique numeric ID for test fixtures
func nextID() int64 {
	return idCounter.Add(1)
}

// NewTestUser creates a test user with sensible defaults
func NewTestUser(opts ...func(*domain.User)) *domain.User {
	id := nextID()
	u := &domain.User{
		ID:          id,
		DisplayName: fmt.Sprintf("Usuario %d", id),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// WithDisplayName sets the user display name
func WithDisplayName(name string) func(*domain.User) {
	return func(u *domain.User) {
		u.DisplayName = name
	}
}

// WithAvatar sets the user avatar URL
func WithAvatar(url string) func(*domain.User) {
	return func(u *domain.User) {
		u.AvatarURL = url
	}
}

// NewTestProduct creates a listing authored by authorID
func NewTestProduct(authorID int64, opts ...func(*domain.Product)) *domain.Product {
	id := nextID()
	p := &domain.Product{
		ID:       id,
		AuthorID: authorID,
		Title:    fmt.Sprintf("Moto %d", id),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewTestPurchase creates a purchase between buyer and seller
func NewTestPurchase(productID, buyerID, sellerID int64) *domain.Purchase {
	return &domain.Purchase{
		ID:        uuid.NewString(),
		ProductID: productID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
	}
}

// SessionOptions allows customizing session fixture creation
type SessionOptions struct {
	ID        string
	UserID    int64
	Token     string
	Nonce     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewTestSession creates a test session with sensible defaults
func NewTestSession(userID int64, opts ...func(*SessionOptions)) *domain.Session {
	n := nextID()
	o := &SessionOptions{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     fmt.Sprintf("token-%d", n),
		Nonce:     fmt.Sprintf("nonce-%d", n),
		ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return &domain.Session{
		ID:        o.ID,
		UserID:    o.UserID,
		Token:     o.Token,
		Nonce:     o.Nonce,
		ExpiresAt: o.ExpiresAt,
		CreatedAt: o.CreatedAt,
	}
}

// WithToken sets the session token
func WithToken(token string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.Token = token
	}
}

// WithNonce sets the session nonce
func WithNonce(nonce string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.Nonce = nonce
	}
}

// WithExpired creates an expired session
func WithExpired() func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.ExpiresAt = time.Now().Add(-1 * time.Hour)
	}
}

// MessageOptions allows customizing message fixture creation
type MessageOptions struct {
	ID          string
	Body        string
	CreatedAt   time.Time
	SenderRole  domain.Role
	UserID      int64
	DisplayName string
}

// NewTestMessage creates a stored message for roomKey
func NewTestMessage(kind domain.ChatKind, entityID, roomKey string, opts ...func(*MessageOptions)) *domain.Message {
	n := nextID()
	o := &MessageOptions{
		ID:         fmt.Sprintf("msg_test%08d", n),
		Body:       fmt.Sprintf("Mensaje %d", n),
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		SenderRole: domain.RoleViewer,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &domain.Message{
		ID:          o.ID,
		RoomKey:     roomKey,
		Kind:        kind,
		EntityID:    entityID,
		Body:        o.Body,
		CreatedAt:   o.CreatedAt,
		SenderRole:  o.SenderRole,
		UserID:      o.UserID,
		DisplayName: o.DisplayName,
	}
}

// WithMessageID sets the message id
func WithMessageID(id string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.ID = id
	}
}

// WithBody sets the message body
func WithBody(body string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Body = body
	}
}

// WithCreatedAt sets the message timestamp
func WithCreatedAt(t time.Time) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.CreatedAt = t
	}
}

// WithSender sets the sender role and user id
func WithSender(role domain.Role, userID int64) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.SenderRole = role
		o.UserID = userID
	}
}
