package chatclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
)

// RoomAPI is the transport as the sync protocol sees it
type RoomAPI interface {
	Fetch(ctx context.Context, since string) (*Page, error)
	Send(ctx context.Context, in SendInput) (*SendResult, error)
}

// SendInput is one outgoing message
type SendInput struct {
	Body       string
	MessageKey string
}

// ProductRoom talks to /products/{id}/chat
type ProductRoom struct {
	transport  *Transport
	productID  int64
	viewerName string

	mu      sync.Mutex
	roomKey string
}

// RoomKey returns the key in use, possibly learned from the server
func (r *ProductRoom) RoomKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomKey
}

func (r *ProductRoom) path() string {
	return "/products/" + strconv.FormatInt(r.productID, 10) + "/chat"
}

// adopt keeps the server-derived key once known so later requests name the room
func (r *ProductRoom) adopt(meta Meta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roomKey == "" && meta.RoomKey != "" {
		r.roomKey = meta.RoomKey
	}
}

func (r *ProductRoom) Fetch(ctx context.Context, since string) (*Page, error) {
	query := url.Values{}
	if key := r.RoomKey(); key != "" {
		query.Set("room_key", key)
	}
	if since != "" {
		query.Set("since_timestamp", since)
	}

	var resp wirePage
	if err := r.transport.do(ctx, http.MethodGet, r.path(), query, nil, &resp); err != nil {
		return nil, err
	}

	page := resp.normalize()
	r.adopt(page.Meta)
	return page, nil
}

func (r *ProductRoom) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	req := wireSendRequest{
		Message:    in.Body,
		RoomKey:    r.RoomKey(),
		ViewerName: r.viewerName,
		MessageKey: in.MessageKey,
	}

	var resp wireSend
	if err := r.transport.do(ctx, http.MethodPost, r.path(), nil, req, &resp); err != nil {
		return nil, err
	}

	result := &SendResult{Message: resp.Data.normalize(), Meta: resp.Meta.normalize()}
	r.adopt(result.Meta)
	return result, nil
}

// PurchaseRoom talks to /purchases/{id}/chat
type PurchaseRoom struct {
	transport  *Transport
	purchaseID string
}

func (r *PurchaseRoom) path() string {
	return "/purchases/" + url.PathEscape(r.purchaseID) + "/chat"
}

func (r *PurchaseRoom) Fetch(ctx context.Context, since string) (*Page, error) {
	query := url.Values{}
	if since != "" {
		query.Set("since_timestamp", since)
	}

	var resp wirePage
	if err := r.transport.do(ctx, http.MethodGet, r.path(), query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.normalize(), nil
}

func (r *PurchaseRoom) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	req := wireSendRequest{Message: in.Body, MessageKey: in.MessageKey}

	var resp wireSend
	if err := r.transport.do(ctx, http.MethodPost, r.path(), nil, req, &resp); err != nil {
		return nil, err
	}
	return &SendResult{Message: resp.Data.normalize(), Meta: resp.Meta.normalize()}, nil
}

// RoomSummary is one conversation in a seller's inbox
type RoomSummary struct {
	RoomKey       string `json:"room_key"`
	ViewerID      string `json:"viewer_id"`
	MessageCount  int64  `json:"message_count"`
	LastMessageAt string `json:"last_message_at"`
}

// ListProductRooms returns the conversations of a listing, latest first.
// Only the listing author is allowed.
func (t *Transport) ListProductRooms(ctx context.Context, productID int64) ([]RoomSummary, error) {
	var resp struct {
		Rooms []RoomSummary `json:"rooms"`
	}
	path := "/products/" + strconv.FormatInt(productID, 10) + "/chat/rooms"
	if err := t.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}
