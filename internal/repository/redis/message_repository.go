package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"motorlist-chat/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

// Layout per room:
//
//	chat:room:{key}:ids    hash   message id -> seq
//	chat:room:{key}:msgs   hash   seq -> JSON message
//	chat:room:{key}:order  zset   seq scored by created_at (unix seconds)
//	chat:room:{key}:seq    counter
//	chat:rooms:{kind}:{entity}  zset room key scored by last activity
//
// Members of the order set are zero-padded seqs, so messages sharing a
// second sort by insertion order.

// appendScript inserts a message or, for a known id, overwrites its payload
// while keeping the stored created_at and seq. A known id sent by anyone but
// its original sender returns -1 and leaves the room untouched.
var appendScript = goredis.NewScript(`
local seq = redis.call('HGET', KEYS[1], ARGV[1])
if seq then
	local existing = cjson.decode(redis.call('HGET', KEYS[2], seq))
	local incoming = cjson.decode(ARGV[2])
	if existing['user_id'] ~= incoming['user_id'] or existing['sender_role'] ~= incoming['sender_role'] then
		return -1
	end
	if incoming['user_id'] == 0 and existing['display_name'] ~= incoming['display_name'] then
		return -1
	end
	incoming['created_at'] = existing['created_at']
	redis.call('HSET', KEYS[2], seq, cjson.encode(incoming))
	return existing['created_at']
end
seq = string.format('%019d', redis.call('INCR', KEYS[4]))
redis.call('HSET', KEYS[1], ARGV[1], seq)
redis.call('HSET', KEYS[2], seq, ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], seq)
redis.call('ZADD', KEYS[5], ARGV[3], ARGV[4])
return tonumber(ARGV[3])
`)

// keyConflict is what appendScript returns for an id owned by another sender
const keyConflict = -1

type storedMessage struct {
	ID          string `json:"id"`
	RoomKey     string `json:"room_key"`
	Kind        string `json:"kind"`
	EntityID    string `json:"entity_id"`
	Body        string `json:"body"`
	SenderRole  string `json:"sender_role"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	CreatedAt   int64  `json:"created_at"`
}

// MessageRepository implements domain.MessageRepository on Redis
type MessageRepository struct {
	client goredis.UniversalClient
	now    func() time.Time
}

// NewMessageRepository creates a Redis-backed message store
func NewMessageRepository(client goredis.UniversalClient) *MessageRepository {
	return &MessageRepository{client: client, now: time.Now}
}

func roomIDsKey(roomKey string) string   { return fmt.Sprintf("chat:room:%s:ids", roomKey) }
func roomMsgsKey(roomKey string) string  { return fmt.Sprintf("chat:room:%s:msgs", roomKey) }
func roomOrderKey(roomKey string) string { return fmt.Sprintf("chat:room:%s:order", roomKey) }
func roomSeqKey(roomKey string) string   { return fmt.Sprintf("chat:room:%s:seq", roomKey) }

func entityRoomsKey(kind domain.ChatKind, entityID string) string {
	return fmt.Sprintf("chat:rooms:%s:%s", kind, entityID)
}

// sinceBound turns a cursor into an exclusive lower score bound. Scores are
// whole seconds, so flooring keeps "created_at > since" exact.
func sinceBound(since time.Time) string {
	return "(" + strconv.FormatInt(since.Unix(), 10)
}

// Append stores message, keyed by its id within the room
func (r *MessageRepository) Append(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	createdAt := message.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	createdAt = createdAt.UTC().Truncate(time.Second)

	payload, err := json.Marshal(toStored(message, createdAt))
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	keys := []string{
		roomIDsKey(message.RoomKey),
		roomMsgsKey(message.RoomKey),
		roomOrderKey(message.RoomKey),
		roomSeqKey(message.RoomKey),
		entityRoomsKey(message.Kind, message.EntityID),
	}
	stored, err := appendScript.Run(ctx, r.client, keys,
		message.ID, string(payload), createdAt.Unix(), message.RoomKey,
	).Int64()
	if err != nil {
		return nil, storageError(ctx, "append message", err)
	}
	if stored == keyConflict {
		return nil, domain.ErrMessageKeyConflict
	}

	saved := *message
	saved.CreatedAt = time.Unix(stored, 0).UTC()
	return &saved, nil
}

// Query returns messages of a room newer than since, oldest first.
// Without since, a positive limit keeps only the latest rows.
func (r *MessageRepository) Query(ctx context.Context, roomKey string, since *time.Time, limit int) ([]*domain.Message, error) {
	orderKey := roomOrderKey(roomKey)

	var (
		seqs []string
		err  error
	)
	switch {
	case since != nil:
		seqs, err = r.client.ZRangeByScore(ctx, orderKey, &goredis.ZRangeBy{
			Min: sinceBound(*since),
			Max: "+inf",
		}).Result()
	case limit > 0:
		seqs, err = r.client.ZRevRange(ctx, orderKey, 0, int64(limit-1)).Result()
		reverse(seqs)
	default:
		seqs, err = r.client.ZRange(ctx, orderKey, 0, -1).Result()
	}
	if err != nil {
		return nil, storageError(ctx, "query messages", err)
	}

	messages := make([]*domain.Message, 0, len(seqs))
	if len(seqs) == 0 {
		return messages, nil
	}

	payloads, err := r.client.HMGet(ctx, roomMsgsKey(roomKey), seqs...).Result()
	if err != nil {
		return nil, storageError(ctx, "load messages", err)
	}

	for _, p := range payloads {
		raw, ok := p.(string)
		if !ok {
			// seq indexed but payload gone; skip rather than fail the page
			continue
		}
		var sm storedMessage
		if err := json.Unmarshal([]byte(raw), &sm); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, sm.toDomain())
	}

	return messages, nil
}

// ListRooms summarizes every room attached to an entity, most recent first
func (r *MessageRepository) ListRooms(ctx context.Context, kind domain.ChatKind, entityID string) ([]*domain.RoomSummary, error) {
	entries, err := r.client.ZRevRangeWithScores(ctx, entityRoomsKey(kind, entityID), 0, -1).Result()
	if err != nil {
		return nil, storageError(ctx, "list rooms", err)
	}

	pipe := r.client.Pipeline()
	counts := make([]*goredis.IntCmd, len(entries))
	for i, e := range entries {
		counts[i] = pipe.ZCard(ctx, roomOrderKey(fmt.Sprint(e.Member)))
	}
	if len(entries) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, storageError(ctx, "count room messages", err)
		}
	}

	rooms := make([]*domain.RoomSummary, 0, len(entries))
	for i, e := range entries {
		room := &domain.RoomSummary{
			RoomKey:       fmt.Sprint(e.Member),
			MessageCount:  counts[i].Val(),
			LastMessageAt: time.Unix(int64(e.Score), 0).UTC(),
		}
		if kind == domain.ChatKindProduct {
			if key, err := domain.ParseProductRoomKey(room.RoomKey); err == nil {
				room.ViewerID = key.ViewerID
			}
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func toStored(m *domain.Message, createdAt time.Time) storedMessage {
	return storedMessage{
		ID:          m.ID,
		RoomKey:     m.RoomKey,
		Kind:        string(m.Kind),
		EntityID:    m.EntityID,
		Body:        m.Body,
		SenderRole:  string(m.SenderRole),
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		AvatarURL:   m.AvatarURL,
		CreatedAt:   createdAt.Unix(),
	}
}

func (s storedMessage) toDomain() *domain.Message {
	return &domain.Message{
		ID:          s.ID,
		RoomKey:     s.RoomKey,
		Kind:        domain.ChatKind(s.Kind),
		EntityID:    s.EntityID,
		Body:        s.Body,
		SenderRole:  domain.Role(s.SenderRole),
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		AvatarURL:   s.AvatarURL,
		CreatedAt:   time.Unix(s.CreatedAt, 0).UTC(),
	}
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// storageError maps every Redis failure except caller cancellation to
// domain.ErrStorageUnavailable.
func storageError(ctx context.Context, action string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("failed to %s: %w", action, ctxErr)
	}
	if errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", action, domain.ErrStorageUnavailable, err)
}
