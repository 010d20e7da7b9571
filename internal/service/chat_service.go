package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"motorlist-chat/internal/domain"
	"motorlist-chat/internal/observability"

	"github.com/google/uuid"
)

const (
	// DefaultHistoryLimit bounds the initial page of a room
	DefaultHistoryLimit = 200

	previewLength = 140
)

var messageKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// EventPublisher announces stored messages to other services
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, event *domain.MessageEvent) error
}

// ListRequest asks for the messages of one room. EntityID is the product id
// or the purchase id, depending on Kind.
type ListRequest struct {
	Kind     domain.ChatKind
	EntityID string
	RoomKey  string
	Since    *time.Time
	Actor    domain.Actor
}

// SendRequest posts one message to a room
type SendRequest struct {
	Kind       domain.ChatKind
	EntityID   string
	RoomKey    string
	Body       string
	ViewerName string
	MessageKey string
	Actor      domain.Actor
}

// Meta travels with every page so the client can sync its cursor and identity
type Meta struct {
	RoomKey         string
	CurrentUserID   int64
	ViewerRole      domain.Role
	ServerTimestamp time.Time
}

// Page is a batch of messages plus meta
type Page struct {
	Messages []*domain.Message
	Meta     Meta
}

type room struct {
	key         string
	kind        domain.ChatKind
	entityID    string
	role        domain.Role
	recipientID int64
}

// ChatService orchestrates room resolution, access control and the message store
type ChatService struct {
	messages  domain.MessageRepository
	products  domain.ProductRepository
	purchases domain.PurchaseRepository
	users     domain.UserRepository
	access    *AccessResolver
	events    EventPublisher

	historyLimit      int
	purchaseMaxLength int
	now               func() time.Time
}

// Option customizes a ChatService
type Option func(*ChatService)

// WithHistoryLimit sets how many messages an initial load returns
func WithHistoryLimit(n int) Option {
	return func(s *ChatService) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithPurchaseMaxLength sets the rune cap of purchase chat messages
func WithPurchaseMaxLength(n int) Option {
	return func(s *ChatService) {
		if n > 0 {
			s.purchaseMaxLength = n
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *ChatService) {
		s.now = now
	}
}

// WithEventPublisher enables message.created events
func WithEventPublisher(p EventPublisher) Option {
	return func(s *ChatService) {
		s.events = p
	}
}

func NewChatService(
	messages domain.MessageRepository,
	products domain.ProductRepository,
	purchases domain.PurchaseRepository,
	users domain.UserRepository,
	access *AccessResolver,
	opts ...Option,
) *ChatService {
	s := &ChatService{
		messages:          messages,
		products:          products,
		purchases:         purchases,
		users:             users,
		access:            access,
		historyLimit:      DefaultHistoryLimit,
		purchaseMaxLength: domain.PurchaseMessageMaxLength,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListMessages returns the room history, or only what is newer than Since.
// An unavailable store yields an empty page rather than an error.
func (s *ChatService) ListMessages(ctx context.Context, req ListRequest) (*Page, error) {
	requestedAt := s.now()

	rm, err := s.resolveRoom(ctx, req.Kind, req.EntityID, req.RoomKey, req.Actor)
	if err != nil {
		return nil, err
	}

	limit := s.historyLimit
	mode := "initial"
	if req.Since != nil {
		limit = 0
		mode = "incremental"
	}
	observability.ChatPollsTotal.WithLabelValues(string(rm.kind), mode).Inc()

	messages, err := s.messages.Query(ctx, rm.key, req.Since, limit)
	if errors.Is(err, domain.ErrStorageUnavailable) {
		observability.ChatStorageDegradedTotal.WithLabelValues(string(rm.kind)).Inc()
		observability.FromContext(ctx).Warn("message store unavailable, serving empty page",
			slog.String("room_key", rm.key),
			slog.String("error", err.Error()))
		messages = []*domain.Message{}
	} else if err != nil {
		return nil, err
	}

	for _, m := range messages {
		m.IsCurrentUser = !req.Actor.Anonymous() && m.UserID == req.Actor.UserID
	}

	return &Page{Messages: messages, Meta: s.meta(rm, req.Actor, requestedAt)}, nil
}

// SendMessage validates, stores and announces one message. The returned page
// holds only the stored message.
func (s *ChatService) SendMessage(ctx context.Context, req SendRequest) (*Page, error) {
	requestedAt := s.now()

	body, err := s.validateBody(req.Kind, req.Body)
	if err != nil {
		return nil, err
	}

	id, err := messageID(req.MessageKey)
	if err != nil {
		return nil, err
	}

	rm, err := s.resolveRoom(ctx, req.Kind, req.EntityID, req.RoomKey, req.Actor)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:         id,
		RoomKey:    rm.key,
		Kind:       rm.kind,
		EntityID:   rm.entityID,
		Body:       body,
		CreatedAt:  requestedAt,
		SenderRole: rm.role,
		UserID:     max(req.Actor.UserID, 0),
	}
	if err := s.attachIdentity(ctx, msg, req); err != nil {
		return nil, err
	}

	saved, err := s.messages.Append(ctx, msg)
	if err != nil {
		return nil, err
	}
	saved.IsCurrentUser = true

	observability.ChatMessagesTotal.WithLabelValues(string(rm.kind), string(rm.role)).Inc()
	s.publish(ctx, saved, rm)

	return &Page{
		Messages: []*domain.Message{saved},
		Meta:     s.meta(rm, req.Actor, requestedAt),
	}, nil
}

// ListRooms returns the product conversations of a listing to its author
func (s *ChatService) ListRooms(ctx context.Context, productID string, actor domain.Actor) ([]*domain.RoomSummary, error) {
	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if actor.Anonymous() {
		return nil, ErrNotAuthenticated
	}
	if actor.UserID != product.AuthorID {
		observability.ChatAccessDeniedTotal.WithLabelValues(string(domain.ChatKindProduct)).Inc()
		return nil, ErrForbidden
	}

	rooms, err := s.messages.ListRooms(ctx, domain.ChatKindProduct, productID)
	if errors.Is(err, domain.ErrStorageUnavailable) {
		observability.ChatStorageDegradedTotal.WithLabelValues(string(domain.ChatKindProduct)).Inc()
		return []*domain.RoomSummary{}, nil
	}
	return rooms, err
}

func (s *ChatService) resolveRoom(ctx context.Context, kind domain.ChatKind, entityID, roomKey string, actor domain.Actor) (*room, error) {
	switch kind {
	case domain.ChatKindPurchase:
		return s.resolvePurchaseRoom(ctx, entityID, actor)
	case domain.ChatKindProduct:
		return s.resolveProductRoom(ctx, entityID, roomKey, actor)
	default:
		return nil, fmt.Errorf("unknown chat kind %q", kind)
	}
}

func (s *ChatService) resolvePurchaseRoom(ctx context.Context, purchaseID string, actor domain.Actor) (*room, error) {
	if _, err := uuid.Parse(purchaseID); err != nil {
		return nil, domain.ErrPurchaseNotFound
	}

	purchase, err := s.purchases.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	if actor.Anonymous() {
		return nil, ErrNotAuthenticated
	}
	if !s.access.CanAccessPurchase(purchase, actor) {
		observability.ChatAccessDeniedTotal.WithLabelValues(string(domain.ChatKindPurchase)).Inc()
		return nil, ErrForbidden
	}

	role := s.access.PurchaseRole(purchase, actor)
	recipient := purchase.SellerID
	if role == domain.RoleSeller {
		recipient = purchase.BuyerID
	}

	return &room{
		key:         purchase.ID,
		kind:        domain.ChatKindPurchase,
		entityID:    purchase.ID,
		role:        role,
		recipientID: recipient,
	}, nil
}

func (s *ChatService) resolveProductRoom(ctx context.Context, productID, roomKey string, actor domain.Actor) (*room, error) {
	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	var key domain.ProductRoomKey
	if roomKey == "" {
		// A logged-in viewer has exactly one room per product
		if actor.Anonymous() || actor.UserID == product.AuthorID {
			return nil, domain.ErrRoomKeyRequired
		}
		key = domain.NewProductRoomKey(product.ID, strconv.FormatInt(actor.UserID, 10))
	} else {
		key, err = domain.ParseProductRoomKey(roomKey)
		if err != nil {
			return nil, err
		}
		if key.ProductID != product.ID {
			return nil, domain.ErrRoomKeyMismatch
		}
	}

	if !s.access.CanAccessProductRoom(product, key, actor) {
		observability.ChatAccessDeniedTotal.WithLabelValues(string(domain.ChatKindProduct)).Inc()
		return nil, ErrForbidden
	}

	role := s.access.ProductRole(product, actor)
	recipient := product.AuthorID
	if role == domain.RoleSeller {
		// Guests have no inbox, so recipient stays 0
		recipient, _ = key.ViewerUserID()
	}

	return &room{
		key:         key.String(),
		kind:        domain.ChatKindProduct,
		entityID:    strconv.FormatInt(product.ID, 10),
		role:        role,
		recipientID: recipient,
	}, nil
}

func (s *ChatService) loadProduct(ctx context.Context, productID string) (*domain.Product, error) {
	id, err := strconv.ParseInt(productID, 10, 64)
	if err != nil || id <= 0 {
		return nil, domain.ErrProductNotFound
	}
	return s.products.GetByID(ctx, id)
}

func (s *ChatService) validateBody(kind domain.ChatKind, body string) (string, error) {
	if kind == domain.ChatKindProduct {
		body = SanitizeBody(body)
	} else {
		body = strings.TrimSpace(body)
	}

	if body == "" {
		return "", domain.ErrEmptyMessage
	}
	if kind == domain.ChatKindPurchase && utf8.RuneCountInString(body) > s.purchaseMaxLength {
		return "", domain.ErrMessageTooLong
	}
	return body, nil
}

// attachIdentity snapshots the sender's name and avatar onto msg
func (s *ChatService) attachIdentity(ctx context.Context, msg *domain.Message, req SendRequest) error {
	if req.Actor.Anonymous() {
		msg.DisplayName = SanitizeGuestName(req.ViewerName)
		return nil
	}

	user, err := s.users.GetByID(ctx, req.Actor.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		msg.DisplayName = "Usuario " + strconv.FormatInt(req.Actor.UserID, 10)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load sender: %w", err)
	}

	msg.DisplayName = user.DisplayName
	msg.AvatarURL = user.AvatarURL
	return nil
}

func (s *ChatService) publish(ctx context.Context, msg *domain.Message, rm *room) {
	if s.events == nil {
		return
	}

	event := &domain.MessageEvent{
		MessageID:   msg.ID,
		RoomKey:     msg.RoomKey,
		Kind:        msg.Kind,
		EntityID:    msg.EntityID,
		SenderID:    msg.UserID,
		SenderName:  msg.DisplayName,
		SenderRole:  msg.SenderRole,
		RecipientID: rm.recipientID,
		Preview:     preview(msg.Body, previewLength),
		CreatedAt:   msg.CreatedAt,
	}

	if err := s.events.PublishMessageCreated(ctx, event); err != nil {
		observability.ChatEventsPublishedTotal.WithLabelValues(string(msg.Kind), "error").Inc()
		observability.FromContext(ctx).Warn("failed to publish message event",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()))
		return
	}
	observability.ChatEventsPublishedTotal.WithLabelValues(string(msg.Kind), "success").Inc()
}

// meta stamps the page with a cursor one second behind the request time.
// Stored timestamps have second precision and the next poll asks for
// strictly newer rows, so the overlap keeps same-second writes from being
// skipped; the client drops the repeats by id.
func (s *ChatService) meta(rm *room, actor domain.Actor, requestedAt time.Time) Meta {
	return Meta{
		RoomKey:         rm.key,
		CurrentUserID:   max(actor.UserID, 0),
		ViewerRole:      rm.role,
		ServerTimestamp: requestedAt.UTC().Truncate(time.Second).Add(-time.Second),
	}
}

// messageID uses the client key when given so retried sends collapse into one row
func messageID(clientKey string) (string, error) {
	if clientKey == "" {
		return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", ""), nil
	}
	if !messageKeyPattern.MatchString(clientKey) {
		return "", domain.ErrInvalidMessageKey
	}
	return clientKey, nil
}
