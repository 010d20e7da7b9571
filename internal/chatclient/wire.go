package chatclient

import (
	"time"

	"motorlist-chat/internal/domain"
)

// Message is one normalized chat message as the client keeps it
type Message struct {
	ID            string
	Body          string
	CreatedAt     time.Time
	SenderRole    string
	UserID        int64
	DisplayName   string
	Avatar        string
	IsCurrentUser bool
}

// Meta is the sync metadata attached to every response
type Meta struct {
	CurrentUserID   int64 // 0 for guests
	ViewerRole      string
	ServerTimestamp string
	RoomKey         string
}

// Page is the result of one fetch
type Page struct {
	Data []Message
	Meta Meta
}

// SendResult is the stored message echoed back by a send
type SendResult struct {
	Message Message
	Meta    Meta
}

type wireMessage struct {
	ID            string  `json:"id"`
	Message       string  `json:"message"`
	CreatedAt     string  `json:"created_at"`
	SenderRole    string  `json:"sender_role"`
	UserID        int64   `json:"user_id"`
	DisplayName   string  `json:"display_name"`
	Avatar        *string `json:"avatar"`
	IsCurrentUser bool    `json:"is_current_user"`
}

type wireMeta struct {
	CurrentUserID   *int64 `json:"current_user_id"`
	ViewerRole      string `json:"viewer_role"`
	ServerTimestamp string `json:"server_timestamp"`
	RoomKey         string `json:"room_key"`
}

type wirePage struct {
	Data []wireMessage `json:"data"`
	Meta wireMeta      `json:"meta"`
}

type wireSend struct {
	Data wireMessage `json:"data"`
	Meta wireMeta    `json:"meta"`
}

type wireSendRequest struct {
	Message    string `json:"message"`
	RoomKey    string `json:"room_key,omitempty"`
	ViewerName string `json:"viewer_name,omitempty"`
	MessageKey string `json:"message_key,omitempty"`
}

// normalize is the single place wire messages become client messages.
// An unparsable created_at sorts first rather than failing the page.
func (w wireMessage) normalize() Message {
	createdAt, _ := domain.ParseWireTime(w.CreatedAt)
	m := Message{
		ID:            w.ID,
		Body:          w.Message,
		CreatedAt:     createdAt,
		SenderRole:    w.SenderRole,
		UserID:        w.UserID,
		DisplayName:   w.DisplayName,
		IsCurrentUser: w.IsCurrentUser,
	}
	if w.Avatar != nil {
		m.Avatar = *w.Avatar
	}
	return m
}

func (w wireMeta) normalize() Meta {
	m := Meta{
		ViewerRole:      w.ViewerRole,
		ServerTimestamp: w.ServerTimestamp,
		RoomKey:         w.RoomKey,
	}
	if w.CurrentUserID != nil {
		m.CurrentUserID = *w.CurrentUserID
	}
	return m
}

func (w wirePage) normalize() *Page {
	page := &Page{Data: make([]Message, 0, len(w.Data)), Meta: w.Meta.normalize()}
	for _, m := range w.Data {
		page.Data = append(page.Data, m.normalize())
	}
	return page
}

// laterCursor reports whether candidate is strictly after current.
// The empty cursor is before everything; unparsable candidates never win.
func laterCursor(candidate, current string) bool {
	next, err := domain.ParseWireTime(candidate)
	if err != nil {
		return false
	}
	if current == "" {
		return true
	}
	prev, err := domain.ParseWireTime(current)
	if err != nil {
		return true
	}
	return next.After(prev)
}
