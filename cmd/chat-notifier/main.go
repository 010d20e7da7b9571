package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"motorlist-chat/internal/config"
	"motorlist-chat/internal/messaging"
	"motorlist-chat/internal/observability"
	"motorlist-chat/internal/repository/postgres"
)

const prefetch = 10

func main() {
	cfg := config.Load()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	observability.InitLogger(logLevel, logFormat)

	slog.Info("starting chat notifier")

	if !cfg.EventsEnabled() {
		slog.Error("RABBITMQ_URL is required for the notifier")
		os.Exit(1)
	}

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.NewPostgresConnection(connCtx, cfg.DatabaseURL)
	connCancel()
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	notifications, err := postgres.NewNotificationRepository(db)
	if err != nil {
		slog.Error("failed to init notification repository", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rmqCtx, rmqCancel := context.WithTimeout(context.Background(), 60*time.Second)
	rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
	rmqCancel()
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()

	deliveries, err := rmq.ConsumeNotifications(prefetch)
	if err != nil {
		slog.Error("failed to start consuming", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("notifier is ready")
	messaging.NewNotificationConsumer(notifications).Run(ctx, deliveries)

	slog.Info("notifier stopped")
}
