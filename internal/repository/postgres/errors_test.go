package postgres

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"motorlist-chat/internal/domain"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{
			name:       "matching_constraint",
			err:        &pq.Error{Code: "23505", Constraint: "chat_messages_room_message_key"},
			constraint: "chat_messages_room_message_key",
			want:       true,
		},
		{
			name:       "any_constraint",
			err:        &pq.Error{Code: "23505", Constraint: "notifications_user_message"},
			constraint: "",
			want:       true,
		},
		{
			name:       "different_constraint",
			err:        &pq.Error{Code: "23505", Constraint: "notifications_user_message"},
			constraint: "chat_messages_room_message_key",
			want:       false,
		},
		{
			name:       "foreign_key_violation",
			err:        &pq.Error{Code: "23503", Constraint: "purchases_product_id_fkey"},
			constraint: "purchases_product_id_fkey",
			want:       false,
		},
		{
			name:       "wrapped_with_w",
			err:        fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}),
			constraint: "",
			want:       true,
		},
		{
			name: "not_pq_error",
			err:  errors.New("some other error"),
			want: false,
		},
		{
			name: "nil_error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err, tt.constraint))
		})
	}
}

func TestIsUndefinedTable(t *testing.T) {
	assert.True(t, IsUndefinedTable(&pq.Error{Code: "42P01"}))
	assert.True(t, IsUndefinedTable(fmt.Errorf("query: %w", &pq.Error{Code: "42P01"})))
	assert.False(t, IsUndefinedTable(&pq.Error{Code: "42703"}))
	assert.False(t, IsUndefinedTable(errors.New("relation does not exist")))
	assert.False(t, IsUndefinedTable(nil))
}

func TestStorageError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"undefined_table", &pq.Error{Code: "42P01"}, true},
		{"conn_done", sql.ErrConnDone, true},
		{"bad_conn", driver.ErrBadConn, true},
		{"network", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"check_violation", &pq.Error{Code: "23514"}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storageError("query messages", tt.err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(err, domain.ErrStorageUnavailable))
			assert.Contains(t, err.Error(), "failed to query messages")
		})
	}
}

func TestPQErrorCodeConstants(t *testing.T) {
	assert.Equal(t, "23505", pqUniqueViolation)
	assert.Equal(t, "42P01", pqUndefinedTable)
}
