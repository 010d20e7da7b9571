// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the motorlist-chat application.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"motorlist-chat/internal/domain"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
	ErrMockNotFound       = errors.New("mock: not found")
)

// MockMessageRepository implements domain.MessageRepository for testing.
// The in-memory store follows the real contract: upsert per (room, id),
// ascending (created_at, insertion) order, strict since, ids owned by
// their first sender.
type MockMessageRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	AppendFunc    func(ctx context.Context, message *domain.Message) (*domain.Message, error)
	QueryFunc     func(ctx context.Context, roomKey string, since *time.Time, limit int) ([]*domain.Message, error)
	ListRoomsFunc func(ctx context.Context, kind domain.ChatKind, entityID string) ([]*domain.RoomSummary, error)

	// In-memory storage for simple tests, by room key
	Messages map[string][]*domain.Message

	// Calls records every Append, including retries
	Calls []*domain.Message
}

// NewMockMessageRepository creates a new MockMessageRepository with initialized maps
func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		Messages: make(map[string][]*domain.Message),
	}
}

func (m *MockMessageRepository) Append(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, message)
	m.mu.Unlock()

	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Messages == nil {
		m.Messages = make(map[string][]*domain.Message)
	}

	saved := *message
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now()
	}
	saved.CreatedAt = saved.CreatedAt.UTC().Truncate(time.Second)

	for _, existing := range m.Messages[message.RoomKey] {
		if existing.ID == message.ID {
			if existing.UserID != saved.UserID || existing.SenderRole != saved.SenderRole ||
				(saved.UserID == 0 && existing.DisplayName != saved.DisplayName) {
				return nil, domain.ErrMessageKeyConflict
			}
			existing.Body = saved.Body
			existing.DisplayName = saved.DisplayName
			existing.AvatarURL = saved.AvatarURL
			out := *existing
			return &out, nil
		}
	}

	stored := saved
	m.Messages[message.RoomKey] = append(m.Messages[message.RoomKey], &stored)
	sort.SliceStable(m.Messages[message.RoomKey], func(i, j int) bool {
		return m.Messages[message.RoomKey][i].CreatedAt.Before(m.Messages[message.RoomKey][j].CreatedAt)
	})
	return &saved, nil
}

func (m *MockMessageRepository) Query(ctx context.Context, roomKey string, since *time.Time, limit int) ([]*domain.Message, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, roomKey, since, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Message, 0)
	for _, msg := range m.Messages[roomKey] {
		if since != nil && !msg.CreatedAt.After(*since) {
			continue
		}
		out := *msg
		result = append(result, &out)
	}

	if since == nil && limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (m *MockMessageRepository) ListRooms(ctx context.Context, kind domain.ChatKind, entityID string) ([]*domain.RoomSummary, error) {
	if m.ListRoomsFunc != nil {
		return m.ListRoomsFunc(ctx, kind, entityID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]*domain.RoomSummary, 0)
	for key, msgs := range m.Messages {
		if len(msgs) == 0 || msgs[0].Kind != kind || msgs[0].EntityID != entityID {
			continue
		}
		summary := &domain.RoomSummary{
			RoomKey:       key,
			MessageCount:  int64(len(msgs)),
			LastMessageAt: msgs[len(msgs)-1].CreatedAt,
		}
		if parsed, err := domain.ParseProductRoomKey(key); err == nil {
			summary.ViewerID = parsed.ViewerID
		}
		rooms = append(rooms, summary)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].LastMessageAt.After(rooms[j].LastMessageAt) })
	return rooms, nil
}

// MockProductRepository implements domain.ProductRepository for testing
type MockProductRepository struct {
	mu sync.RWMutex

	GetByIDFunc func(ctx context.Context, id int64) (*domain.Product, error)

	Products map[int64]*domain.Product
}

// NewMockProductRepository seeds the mock with products
func NewMockProductRepository(products ...*domain.Product) *MockProductRepository {
	m := &MockProductRepository{Products: make(map[int64]*domain.Product)}
	for _, p := range products {
		m.Products[p.ID] = p
	}
	return m
}

func (m *MockProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.Products[id]; ok {
		return p, nil
	}
	return nil, domain.ErrProductNotFound
}

// MockPurchaseRepository implements domain.PurchaseRepository for testing
type MockPurchaseRepository struct {
	mu sync.RWMutex

	GetByIDFunc func(ctx context.Context, id string) (*domain.Purchase, error)

	Purchases map[string]*domain.Purchase
}

// NewMockPurchaseRepository seeds the mock with purchases
func NewMockPurchaseRepository(purchases ...*domain.Purchase) *MockPurchaseRepository {
	m := &MockPurchaseRepository{Purchases: make(map[string]*domain.Purchase)}
	for _, p := range purchases {
		m.Purchases[p.ID] = p
	}
	return m
}

func (m *MockPurchaseRepository) GetByID(ctx context.Context, id string) (*domain.Purchase, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.Purchases[id]; ok {
		return p, nil
	}
	return nil, domain.ErrPurchaseNotFound
}

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mu sync.RWMutex

	GetByIDFunc func(ctx context.Context, id int64) (*domain.User, error)

	Users map[int64]*domain.User
}

// NewMockUserRepository seeds the mock with users
func NewMockUserRepository(users ...*domain.User) *MockUserRepository {
	m := &MockUserRepository{Users: make(map[int64]*domain.User)}
	for _, u := range users {
		m.Users[u.ID] = u
	}
	return m
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if u, ok := m.Users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

// MockSessionRepository implements domain.SessionRepository for testing
type MockSessionRepository struct {
	mu sync.RWMutex

	GetByTokenFunc    func(ctx context.Context, token string) (*domain.Session, error)
	DeleteExpiredFunc func(ctx context.Context) (int64, error)

	Sessions map[string]*domain.Session
}

// NewMockSessionRepository seeds the mock with sessions keyed by token
func NewMockSessionRepository(sessions ...*domain.Session) *MockSessionRepository {
	m := &MockSessionRepository{Sessions: make(map[string]*domain.Session)}
	for _, s := range sessions {
		m.Sessions[s.Token] = s
	}
	return m
}

func (m *MockSessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.Sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !session.ExpiresAt.After(time.Now()) {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	now := time.Now()
	for token, s := range m.Sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.Sessions, token)
			count++
		}
	}
	return count, nil
}

// MockNotificationRepository implements domain.NotificationRepository for testing
type MockNotificationRepository struct {
	mu sync.Mutex

	CreateFunc func(ctx context.Context, n *domain.Notification) (bool, error)

	Notifications []*domain.Notification
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) (bool, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.Notifications {
		if existing.UserID == n.UserID && existing.MessageID == n.MessageID {
			return false, nil
		}
	}
	n.ID = int64(len(m.Notifications) + 1)
	n.CreatedAt = time.Now()
	m.Notifications = append(m.Notifications, n)
	return true, nil
}

// All returns a snapshot of the stored notifications
func (m *MockNotificationRepository) All() []*domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*domain.Notification(nil), m.Notifications...)
}

// MockEventPublisher records published message events
type MockEventPublisher struct {
	mu sync.Mutex

	PublishFunc func(ctx context.Context, event *domain.MessageEvent) error

	Events []*domain.MessageEvent
}

func (m *MockEventPublisher) PublishMessageCreated(ctx context.Context, event *domain.MessageEvent) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Events = append(m.Events, event)
	return nil
}
