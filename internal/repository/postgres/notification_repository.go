package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"motorlist-chat/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository for PostgreSQL
type NotificationRepository struct {
	db         *sql.DB
	createStmt *sql.Stmt
}

// NewNotificationRepository creates a new NotificationRepository with prepared statements
func NewNotificationRepository(db *sql.DB) (*NotificationRepository, error) {
	repo := &NotificationRepository{db: db}

	var err error
	repo.createStmt, err = db.Prepare(`
		INSERT INTO notifications (user_id, type, entity_id, message_id, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, message_id) DO NOTHING
		RETURNING id, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare create statement: %w", err)
	}

	return repo, nil
}

// Create stores n and reports false when the (user, message) pair already exists
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (bool, error) {
	defer observeQuery("insert", "notifications", time.Now())

	err := r.createStmt.QueryRowContext(ctx,
		n.UserID,
		n.Type,
		n.EntityID,
		n.MessageID,
		n.Body,
	).Scan(&n.ID, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageError("create notification", err)
	}
	return true, nil
}
