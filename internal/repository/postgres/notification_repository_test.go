package postgres

import (
	"context"
	"testing"
	"time"

	"motorlist-chat/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createNotificationPattern = `INSERT INTO notifications \(user_id, type, entity_id, message_id, body\)`

func newNotificationRepo(t *testing.T) (*NotificationRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPrepare(createNotificationPattern)
	repo, err := NewNotificationRepository(db)
	require.NoError(t, err)
	return repo, mock
}

func TestNotificationRepository_Create(t *testing.T) {
	notification := func() *domain.Notification {
		return &domain.Notification{
			UserID:    5,
			Type:      domain.NotificationTypeChatMessage,
			EntityID:  "10",
			MessageID: "msg_1",
			Body:      "Ana: Hola",
		}
	}

	t.Run("created", func(t *testing.T) {
		repo, mock := newNotificationRepo(t)
		now := time.Now()

		mock.ExpectQuery(createNotificationPattern).
			WithArgs(int64(5), "chat_message", "10", "msg_1", "Ana: Hola").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(77), now))

		n := notification()
		created, err := repo.Create(context.Background(), n)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(77), n.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate_is_ignored", func(t *testing.T) {
		repo, mock := newNotificationRepo(t)

		mock.ExpectQuery(createNotificationPattern).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

		created, err := repo.Create(context.Background(), notification())
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("missing_table", func(t *testing.T) {
		repo, mock := newNotificationRepo(t)

		mock.ExpectQuery(createNotificationPattern).WillReturnError(&pq.Error{Code: "42P01"})

		_, err := repo.Create(context.Background(), notification())
		assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	})
}
