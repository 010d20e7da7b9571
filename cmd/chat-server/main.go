package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"motorlist-chat/internal/config"
	"motorlist-chat/internal/domain"
	"motorlist-chat/internal/handler"
	"motorlist-chat/internal/messaging"
	"motorlist-chat/internal/middleware"
	"motorlist-chat/internal/observability"
	"motorlist-chat/internal/repository/postgres"
	redisrepo "motorlist-chat/internal/repository/redis"
	"motorlist-chat/internal/security"
	"motorlist-chat/internal/service"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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

	slog.Info("starting chat server",
		slog.String("environment", cfg.Environment),
		slog.String("storage", cfg.StorageBackend))

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(connCtx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgresql")

	if err := postgres.Migrate(connCtx, db); err != nil {
		slog.Error("schema migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	checks := map[string]handler.Check{"database": handler.DatabaseCheck(db)}

	var messageRepo domain.MessageRepository
	switch cfg.StorageBackend {
	case config.StorageBackendRedis:
		client, err := config.NewRedisClient(connCtx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer client.Close()
		messageRepo = redisrepo.NewMessageRepository(client)
		checks["redis"] = handler.RedisCheck(client)
		slog.Info("using redis message store")
	default:
		repo, err := postgres.NewMessageRepository(db)
		if err != nil {
			slog.Error("failed to init message repository", slog.String("error", err.Error()))
			os.Exit(1)
		}
		messageRepo = repo
	}

	sessionRepo, err := postgres.NewSessionRepository(db)
	if err != nil {
		slog.Error("failed to init session repository", slog.String("error", err.Error()))
		os.Exit(1)
	}

	guests := security.NewGuestSigner(cfg.GuestTokenSecret)
	chatOpts := []service.Option{
		service.WithHistoryLimit(cfg.HistoryLimit),
		service.WithPurchaseMaxLength(cfg.PurchaseMessageMaxLength),
	}

	if cfg.EventsEnabled() {
		rmqCtx, rmqCancel := context.WithTimeout(context.Background(), 60*time.Second)
		rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
		rmqCancel()
		if err != nil {
			slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer rmq.Close()

		chatOpts = append(chatOpts, service.WithEventPublisher(rmq))
		checks["rabbitmq"] = handler.RabbitMQCheck(rmq)
		slog.Info("publishing message events")
	}

	chatService := service.NewChatService(
		messageRepo,
		postgres.NewProductRepository(db),
		postgres.NewPurchaseRepository(db),
		postgres.NewUserRepository(db),
		service.NewAccessResolver(cfg.StrictGuestRooms, guests),
		chatOpts...,
	)
	chatHandler := handler.NewChatHandler(chatService, guests, cfg.PurchaseMessageMaxLength)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go startSessionCleanup(ctx, sessionRepo, cfg.SessionCleanupInterval)
	go recordDBStats(ctx, db)

	writeLimiter := middleware.NewRateLimiter(cfg.WriteRateLimit, cfg.WriteRateBurst)
	defer writeLimiter.Stop()

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(middleware.ParseOrigins(cfg.AllowedOrigins)))
	r.Use(middleware.Metrics())
	r.Use(middleware.OpenAPIValidator(middleware.DefaultOpenAPIValidatorConfig(cfg.OpenAPIValidation, cfg.OpenAPISpecPath)))

	r.Get("/health", handler.Health)
	r.Get("/ready", handler.Ready(checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(sessionRepo, cfg.SessionCookie))
		r.Use(middleware.CSRF())
		r.Use(writeLimiter.Middleware())
		chatHandler.Routes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("chat server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	slog.Info("server stopped gracefully")
}

// startSessionCleanup deletes expired host-site sessions on every tick
func startSessionCleanup(ctx context.Context, repo domain.SessionRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping session cleanup task")
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			count, err := repo.DeleteExpired(cleanupCtx)
			if err != nil {
				slog.Error("session cleanup failed", slog.String("error", err.Error()))
			} else {
				slog.Info("session cleanup completed",
					slog.Int64("sessions_deleted", count))
			}
			cancel()
		}
	}
}

func recordDBStats(ctx context.Context, db *sql.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.RecordDBStats(db.Stats())
		}
	}
}
