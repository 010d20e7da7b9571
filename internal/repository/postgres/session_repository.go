package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"motorlist-chat/internal/domain"
)

// SessionRepository reads the host site's cookie sessions
type SessionRepository struct {
	db                *sql.DB
	getByTokenStmt    *sql.Stmt
	deleteExpiredStmt *sql.Stmt
}

// NewSessionRepository creates a new SessionRepository with prepared statements.
// Returns an error if statement preparation fails.
func NewSessionRepository(db *sql.DB) (*SessionRepository, error) {
	repo := &SessionRepository{db: db}

	var err error
	repo.getByTokenStmt, err = db.Prepare(`
		SELECT id, user_id, token, nonce, expires_at, created_at
		FROM sessions
		WHERE token = $1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare getByToken statement: %w", err)
	}

	repo.deleteExpiredStmt, err = db.Prepare(`DELETE FROM sessions WHERE expires_at <= $1`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare deleteExpired statement: %w", err)
	}

	return repo, nil
}

// GetByToken returns ErrSessionExpired for a known but stale token so the
// edge can answer 401 instead of treating the caller as a guest.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	session := &domain.Session{}
	err := r.getByTokenStmt.QueryRowContext(ctx, token).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.Nonce,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by token: %w", err)
	}
	if !session.ExpiresAt.After(time.Now()) {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.deleteExpiredStmt.ExecContext(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}
