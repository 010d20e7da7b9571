//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"motorlist-chat/internal/domain"
	"motorlist-chat/internal/repository/postgres"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container, applies the schema and returns a connection
func setupPostgres(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err, "failed to connect to PostgreSQL")
	require.Eventually(t, func() bool { return db.PingContext(ctx) == nil }, 10*time.Second, 200*time.Millisecond)

	require.NoError(t, postgres.Migrate(ctx, db), "failed to run migrations")

	cleanup := func() {
		db.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func TestMessageRepository_Integration(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	repo, err := postgres.NewMessageRepository(db)
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	newMessage := func(id string, at time.Time) *domain.Message {
		return &domain.Message{
			ID:          id,
			RoomKey:     "pub-10-viewer-7",
			Kind:        domain.ChatKindProduct,
			EntityID:    "10",
			Body:        "mensaje " + id,
			CreatedAt:   at,
			SenderRole:  domain.RoleViewer,
			UserID:      7,
			DisplayName: "Ana",
		}
	}

	t.Run("same_second_messages_keep_insertion_order", func(t *testing.T) {
		for _, id := range []string{"msg_a", "msg_b", "msg_c"} {
			_, err := repo.Append(ctx, newMessage(id, base))
			require.NoError(t, err)
		}

		messages, err := repo.Query(ctx, "pub-10-viewer-7", nil, 0)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		assert.Equal(t, []string{"msg_a", "msg_b", "msg_c"}, []string{messages[0].ID, messages[1].ID, messages[2].ID})
	})

	t.Run("append_is_idempotent_per_key", func(t *testing.T) {
		retry := newMessage("msg_a", base.Add(time.Minute))
		retry.Body = "editado"

		saved, err := repo.Append(ctx, retry)
		require.NoError(t, err)
		assert.Equal(t, base, saved.CreatedAt)

		messages, err := repo.Query(ctx, "pub-10-viewer-7", nil, 0)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		assert.Equal(t, "editado", messages[0].Body)
	})

	t.Run("other_sender_cannot_reuse_key", func(t *testing.T) {
		forged := newMessage("msg_a", base.Add(time.Minute))
		forged.Body = "Precio final 5 EUR"
		forged.UserID = 1
		forged.SenderRole = domain.RoleSeller
		forged.DisplayName = "Bea"

		_, err := repo.Append(ctx, forged)
		assert.ErrorIs(t, err, domain.ErrMessageKeyConflict)

		messages, err := repo.Query(ctx, "pub-10-viewer-7", nil, 0)
		require.NoError(t, err)
		assert.Equal(t, "editado", messages[0].Body)
		assert.Equal(t, int64(7), messages[0].UserID)
		assert.Equal(t, "Ana", messages[0].DisplayName)
	})

	t.Run("since_is_strict", func(t *testing.T) {
		_, err := repo.Append(ctx, newMessage("msg_d", base.Add(time.Second)))
		require.NoError(t, err)

		messages, err := repo.Query(ctx, "pub-10-viewer-7", &base, 0)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "msg_d", messages[0].ID)
	})

	t.Run("latest_limit", func(t *testing.T) {
		messages, err := repo.Query(ctx, "pub-10-viewer-7", nil, 2)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "msg_c", messages[0].ID)
		assert.Equal(t, "msg_d", messages[1].ID)
	})

	t.Run("list_rooms", func(t *testing.T) {
		other := newMessage("msg_z", base)
		other.RoomKey = "pub-10-viewer-gdeadbeef"
		other.UserID = 0
		_, err := repo.Append(ctx, other)
		require.NoError(t, err)

		rooms, err := repo.ListRooms(ctx, domain.ChatKindProduct, "10")
		require.NoError(t, err)
		require.Len(t, rooms, 2)
		assert.Equal(t, "7", rooms[0].ViewerID)
		assert.Equal(t, int64(4), rooms[0].MessageCount)
	})
}

func TestMessageRepository_Integration_MissingTable(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	repo, err := postgres.NewMessageRepository(db)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "DROP TABLE chat_messages")
	require.NoError(t, err)

	_, err = repo.Query(ctx, "pub-10-viewer-7", nil, 200)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestEntityRepositories_Integration(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()

	var sellerID, buyerID, productID int64
	require.NoError(t, db.QueryRowContext(ctx, `INSERT INTO users (display_name) VALUES ('Sol') RETURNING id`).Scan(&sellerID))
	require.NoError(t, db.QueryRowContext(ctx, `INSERT INTO users (display_name, avatar_url) VALUES ('Bea', 'https://cdn.example.com/bea.png') RETURNING id`).Scan(&buyerID))
	require.NoError(t, db.QueryRowContext(ctx, `INSERT INTO products (author_id, title) VALUES ($1, 'Ducati Monster') RETURNING id`, sellerID).Scan(&productID))

	var purchaseID string
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO purchases (product_id, buyer_id, seller_id) VALUES ($1, $2, $3) RETURNING id`,
		productID, buyerID, sellerID,
	).Scan(&purchaseID))

	product, err := postgres.NewProductRepository(db).GetByID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, sellerID, product.AuthorID)

	purchase, err := postgres.NewPurchaseRepository(db).GetByID(ctx, purchaseID)
	require.NoError(t, err)
	assert.Equal(t, buyerID, purchase.BuyerID)

	user, err := postgres.NewUserRepository(db).GetByID(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, "Bea", user.DisplayName)

	_, err = postgres.NewProductRepository(db).GetByID(ctx, productID+1000)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	notifications, err := postgres.NewNotificationRepository(db)
	require.NoError(t, err)
	n := &domain.Notification{UserID: sellerID, Type: domain.NotificationTypeChatMessage, EntityID: purchaseID, MessageID: "msg_1", Body: "Bea: Hola"}
	created, err := notifications.Create(ctx, n)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = notifications.Create(ctx, &domain.Notification{UserID: sellerID, Type: domain.NotificationTypeChatMessage, EntityID: purchaseID, MessageID: "msg_1", Body: "Bea: Hola"})
	require.NoError(t, err)
	assert.False(t, created)
}
