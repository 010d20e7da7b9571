package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"motorlist-chat/internal/domain"
	"motorlist-chat/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NotificationConsumer turns message.created events into inbox notifications
type NotificationConsumer struct {
	notifications domain.NotificationRepository
}

func NewNotificationConsumer(notifications domain.NotificationRepository) *NotificationConsumer {
	return &NotificationConsumer{notifications: notifications}
}

// Run processes deliveries until ctx is done or the channel closes
func (c *NotificationConsumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping notification consumer")
			return
		case d, ok := <-deliveries:
			if !ok {
				slog.Warn("notification consumer channel closed")
				return
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery acks processed and malformed events; storage failures are
// requeued so the notification is written once the database is back.
func (c *NotificationConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	err := c.Handle(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			slog.Error("failed to ack event", slog.String("error", ackErr.Error()))
		}
	case errors.Is(err, errMalformedEvent):
		slog.Error("dropping malformed event",
			slog.String("error", err.Error()),
			slog.Int("body_size", len(d.Body)))
		if nackErr := d.Nack(false, false); nackErr != nil {
			slog.Error("failed to nack event", slog.String("error", nackErr.Error()))
		}
	default:
		slog.Warn("failed to store notification, requeueing",
			slog.String("error", err.Error()))
		if nackErr := d.Nack(false, true); nackErr != nil {
			slog.Error("failed to nack event", slog.String("error", nackErr.Error()))
		}
	}
}

var errMalformedEvent = errors.New("malformed message event")

// Handle writes the notification for one encoded event
func (c *NotificationConsumer) Handle(ctx context.Context, body []byte) error {
	var event domain.MessageEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if event.MessageID == "" {
		return fmt.Errorf("%w: missing message id", errMalformedEvent)
	}

	if event.RecipientID <= 0 {
		// Guest rooms have nobody to notify
		observability.NotificationsCreatedTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	created, err := c.notifications.Create(ctx, &domain.Notification{
		UserID:    event.RecipientID,
		Type:      domain.NotificationTypeChatMessage,
		EntityID:  event.EntityID,
		MessageID: event.MessageID,
		Body:      fmt.Sprintf("%s: %s", event.SenderName, event.Preview),
	})
	if err != nil {
		observability.NotificationsCreatedTotal.WithLabelValues("error").Inc()
		return err
	}

	if !created {
		observability.NotificationsCreatedTotal.WithLabelValues("duplicate").Inc()
		slog.Debug("notification already exists", slog.String("message_id", event.MessageID))
		return nil
	}

	observability.NotificationsCreatedTotal.WithLabelValues("created").Inc()
	slog.Info("notification created",
		slog.Int64("user_id", event.RecipientID),
		slog.String("message_id", event.MessageID))
	return nil
}
