package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"motorlist-chat/internal/domain"

	sq "github.com/Masterminds/squirrel"
)

const messagesTable = "chat_messages"

var messageColumns = []string{
	"message_key",
	"room_key",
	"kind",
	"entity_id",
	"body",
	"sender_role",
	"user_id",
	"display_name",
	"avatar_url",
	"created_at",
}

// psql builds queries with $n placeholders
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// MessageRepository implements domain.MessageRepository for PostgreSQL
type MessageRepository struct {
	db         *sql.DB
	appendStmt *sql.Stmt
	now        func() time.Time
}

// NewMessageRepository creates a new PostgreSQL message repository with prepared statements
func NewMessageRepository(db *sql.DB) (*MessageRepository, error) {
	repo := &MessageRepository{db: db, now: time.Now}

	var err error
	repo.appendStmt, err = db.Prepare(`
		INSERT INTO chat_messages (message_key, room_key, kind, entity_id, body, sender_role, user_id, display_name, avatar_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (room_key, message_key) DO UPDATE
		SET body = EXCLUDED.body, display_name = EXCLUDED.display_name, avatar_url = EXCLUDED.avatar_url
		WHERE chat_messages.user_id = EXCLUDED.user_id
			AND chat_messages.sender_role = EXCLUDED.sender_role
			AND (EXCLUDED.user_id <> 0 OR chat_messages.display_name = EXCLUDED.display_name)
		RETURNING created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare append statement: %w", err)
	}

	return repo, nil
}

// Append upserts a message by (room_key, id). A repeated id keeps the
// original created_at so retries never reorder the room. Only the original
// sender may reuse an id; anyone else gets domain.ErrMessageKeyConflict.
func (r *MessageRepository) Append(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	defer observeQuery("upsert", messagesTable, time.Now())

	createdAt := message.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	createdAt = createdAt.UTC().Truncate(time.Second)

	var stored time.Time
	err := r.appendStmt.QueryRowContext(ctx,
		message.ID,
		message.RoomKey,
		string(message.Kind),
		message.EntityID,
		message.Body,
		string(message.SenderRole),
		message.UserID,
		message.DisplayName,
		message.AvatarURL,
		createdAt,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageKeyConflict
	}
	if err != nil {
		return nil, unavailableOnCancel(ctx, "append message", err)
	}

	saved := *message
	saved.CreatedAt = stored.UTC()
	return &saved, nil
}

// Query returns messages of a room newer than since, oldest first.
// Without since, a positive limit keeps only the latest rows.
func (r *MessageRepository) Query(ctx context.Context, roomKey string, since *time.Time, limit int) ([]*domain.Message, error) {
	defer observeQuery("select", messagesTable, time.Now())

	q := psql.Select(messageColumns...).
		From(messagesTable).
		Where(sq.Eq{"room_key": roomKey})

	latest := since == nil && limit > 0
	switch {
	case since != nil:
		q = q.Where(sq.Gt{"created_at": since.UTC()}).OrderBy("created_at ASC", "seq ASC")
	case latest:
		q = q.OrderBy("created_at DESC", "seq DESC").Limit(uint64(limit))
	default:
		q = q.OrderBy("created_at ASC", "seq ASC")
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build message query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailableOnCancel(ctx, "query messages", err)
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("iterate messages", err)
	}

	if latest {
		// Reverse the slice to get oldest first
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}

	return messages, nil
}

// ListRooms summarizes every room attached to an entity, most recent first
func (r *MessageRepository) ListRooms(ctx context.Context, kind domain.ChatKind, entityID string) ([]*domain.RoomSummary, error) {
	defer observeQuery("select_rooms", messagesTable, time.Now())

	query, args, err := psql.Select("room_key", "COUNT(*)", "MAX(created_at)").
		From(messagesTable).
		Where(sq.Eq{"kind": string(kind), "entity_id": entityID}).
		GroupBy("room_key").
		OrderBy("MAX(created_at) DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build rooms query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailableOnCancel(ctx, "list rooms", err)
	}
	defer rows.Close()

	rooms := make([]*domain.RoomSummary, 0)
	for rows.Next() {
		room := &domain.RoomSummary{}
		if err := rows.Scan(&room.RoomKey, &room.MessageCount, &room.LastMessageAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		room.LastMessageAt = room.LastMessageAt.UTC()
		if kind == domain.ChatKindProduct {
			if key, err := domain.ParseProductRoomKey(room.RoomKey); err == nil {
				room.ViewerID = key.ViewerID
			}
		}
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("iterate rooms", err)
	}

	return rooms, nil
}

func scanMessage(rows *sql.Rows) (*domain.Message, error) {
	var (
		msg        domain.Message
		kind, role string
	)
	err := rows.Scan(
		&msg.ID,
		&msg.RoomKey,
		&kind,
		&msg.EntityID,
		&msg.Body,
		&role,
		&msg.UserID,
		&msg.DisplayName,
		&msg.AvatarURL,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.Kind = domain.ChatKind(kind)
	msg.SenderRole = domain.Role(role)
	msg.CreatedAt = msg.CreatedAt.UTC()
	return &msg, nil
}
