package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements create the chat tables and the host-site tables the chat
// reads from. Every statement is idempotent.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		display_name VARCHAR(250) NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token VARCHAR(255) UNIQUE NOT NULL,
		nonce VARCHAR(255) NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		buyer_id BIGINT NOT NULL REFERENCES users(id),
		seller_id BIGINT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		seq BIGSERIAL PRIMARY KEY,
		message_key VARCHAR(64) NOT NULL,
		room_key VARCHAR(191) NOT NULL,
		kind VARCHAR(16) NOT NULL CHECK (kind IN ('purchase', 'product')),
		entity_id VARCHAR(64) NOT NULL,
		body TEXT NOT NULL CHECK (length(body) > 0),
		sender_role VARCHAR(16) NOT NULL CHECK (sender_role IN ('seller', 'buyer', 'viewer')),
		user_id BIGINT NOT NULL DEFAULT 0,
		display_name VARCHAR(250) NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT chat_messages_room_message_key UNIQUE (room_key, message_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_room_created ON chat_messages (room_key, created_at, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_entity ON chat_messages (kind, entity_id)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		type VARCHAR(32) NOT NULL,
		entity_id VARCHAR(64) NOT NULL,
		message_id VARCHAR(64) NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP NOT NULL,
		CONSTRAINT notifications_user_message UNIQUE (user_id, message_id)
	)`,
}

// Migrate applies the schema in a single transaction
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("failed to apply schema statement %d: %w (rollback: %v)", i, err, rbErr)
			}
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
