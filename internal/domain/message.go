package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrMessageTooLong     = errors.New("message is too long")
	ErrInvalidMessageKey  = errors.New("invalid message key")
	ErrMessageKeyConflict = errors.New("message key belongs to another sender")
	ErrStorageUnavailable = errors.New("message storage unavailable")
)

// WireTimeLayout is the UTC layout used for created_at and server_timestamp.
const WireTimeLayout = "2006-01-02 15:04:05"

// PurchaseMessageMaxLength caps purchase chat bodies, counted in runes.
const PurchaseMessageMaxLength = 1000

// Message represents one unit of conversation inside a room
type Message struct {
	ID          string
	RoomKey     string
	Kind        ChatKind
	EntityID    string
	Body        string
	CreatedAt   time.Time
	SenderRole  Role
	UserID      int64
	DisplayName string
	AvatarURL   string

	// IsCurrentUser is computed per request and never persisted.
	IsCurrentUser bool
}

// RoomSummary describes one conversation of an entity
type RoomSummary struct {
	RoomKey       string    `json:"room_key"`
	ViewerID      string    `json:"viewer_id"`
	MessageCount  int64     `json:"message_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// MessageRepository defines the interface for message storage.
// Append is an upsert keyed by (room key, message id); Query returns rows
// strictly newer than since, ascending by (created_at, insertion order).
type MessageRepository interface {
	Append(ctx context.Context, message *Message) (*Message, error)
	Query(ctx context.Context, roomKey string, since *time.Time, limit int) ([]*Message, error)
	ListRooms(ctx context.Context, kind ChatKind, entityID string) ([]*RoomSummary, error)
}

// FormatWireTime renders t the way created_at and server_timestamp travel
func FormatWireTime(t time.Time) string {
	return t.UTC().Format(WireTimeLayout)
}

// ParseWireTime accepts the wire layout and RFC3339.
func ParseWireTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(WireTimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
