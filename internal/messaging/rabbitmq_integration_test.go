//go:build integration
// +build integration

package messaging_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"motorlist-chat/internal/domain"
	"motorlist-chat/internal/messaging"
	"motorlist-chat/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRabbitMQ starts a RabbitMQ container and returns its connection URL
func setupRabbitMQ(t *testing.T) (string, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.12-management-alpine",
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("Server startup complete"),
			wait.ForListeningPort("5672/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start RabbitMQ container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port()), cleanup
}

func TestRabbitMQConnection(t *testing.T) {
	url, cleanup := setupRabbitMQ(t)
	defer cleanup()

	t.Run("successful_connection", func(t *testing.T) {
		rmq, err := messaging.NewRabbitMQ(url)
		require.NoError(t, err)
		defer rmq.Close()

		assert.False(t, rmq.IsClosed())
	})

	t.Run("invalid_url_fails", func(t *testing.T) {
		_, err := messaging.NewRabbitMQ("amqp://invalid:9999/")
		assert.Error(t, err)
	})
}

func TestMessageEventToNotificationFlow(t *testing.T) {
	url, cleanup := setupRabbitMQ(t)
	defer cleanup()

	publisher, err := messaging.NewRabbitMQ(url)
	require.NoError(t, err)
	defer publisher.Close()

	subscriber, err := messaging.NewRabbitMQ(url)
	require.NoError(t, err)
	defer subscriber.Close()

	deliveries, err := subscriber.ConsumeNotifications(10)
	require.NoError(t, err)

	repo := &testutil.MockNotificationRepository{}
	consumer := messaging.NewNotificationConsumer(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx, deliveries)

	event := &domain.MessageEvent{
		MessageID:   "msg_integration01",
		RoomKey:     "pub-10-viewer-7",
		Kind:        domain.ChatKindProduct,
		EntityID:    "10",
		SenderID:    7,
		SenderName:  "Ana",
		SenderRole:  domain.RoleViewer,
		RecipientID: 5,
		Preview:     "Hola",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, publisher.PublishMessageCreated(context.Background(), event))
	// A redelivered event must not produce a second notification
	require.NoError(t, publisher.PublishMessageCreated(context.Background(), event))

	require.Eventually(t, func() bool {
		return len(repo.All()) == 1
	}, 10*time.Second, 100*time.Millisecond)

	time.Sleep(500 * time.Millisecond)
	notifications := repo.All()
	assert.Len(t, notifications, 1)
	assert.Equal(t, "Ana: Hola", notifications[0].Body)
}
