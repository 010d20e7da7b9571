package domain

import (
	"context"
	"time"
)

// NotificationTypeChatMessage marks notifications raised by new chat messages
const NotificationTypeChatMessage = "chat_message"

// MessageEvent is published after a message is stored
type MessageEvent struct {
	MessageID   string    `json:"message_id"`
	RoomKey     string    `json:"room_key"`
	Kind        ChatKind  `json:"kind"`
	EntityID    string    `json:"entity_id"`
	SenderID    int64     `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	SenderRole  Role      `json:"sender_role"`
	RecipientID int64     `json:"recipient_id"`
	Preview     string    `json:"preview"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification is an inbox entry for a user
type Notification struct {
	ID        int64
	UserID    int64
	Type      string
	EntityID  string
	MessageID string
	Body      string
	CreatedAt time.Time
}

// NotificationRepository stores notifications; Create ignores duplicates per (user, message)
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) (bool, error)
}
