package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"convivo.im.messaging/internal/cache"
	"convivo.im.messaging/internal/config"
	"convivo.im.messaging/internal/handler"
	"convivo.im.messaging/internal/health"
	"convivo.im.messaging/internal/jwt"
	msgNats "convivo.im.messaging/internal/nats"
	"convivo.im.messaging/internal/realtime"
	"convivo.im.messaging/internal/repository"
	"convivo.im.messaging/internal/router"
	"convivo.im.messaging/internal/service"
	"convivo.im.messaging/internal/snowflake"
	"convivo.im.messaging/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	idGenerator, err := snowflake.NewNode(cfg.App.NodeID)
	if err != nil {
		logger.Error("Failed to create id generator", "error", err)
		os.Exit(1)
	}

	natsClient, err := msgNats.NewClient(cfg.NATS)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	logger.Info("Connected to NATS", "url", cfg.NATS.URL)

	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "host", cfg.Redis.Host)

	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	store, err := storage.NewAttachmentStore(ctx, cfg.Storage.Region, cfg.Storage.Bucket, cfg.Storage.PresignTTL)
	if err != nil {
		logger.Error("Failed to initialize object storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Object storage ready", "bucket", cfg.Storage.Bucket)

	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	listCache := cache.NewConversationCache(redisClient)
	publisher := realtime.NewEventPublisher(natsClient.Conn())

	conversationService := service.NewConversationService(conversationRepo, listCache, idGenerator)
	messageService := service.NewMessageService(
		messageRepo,
		conversationRepo,
		receiptRepo,
		store,
		publisher,
		listCache,
		idGenerator,
	)

	announcer := service.NewAnnouncer(db, idGenerator, publisher, service.AnnouncerConfig{
		BatchSize:     cfg.Announcer.BatchSize,
		FlushInterval: cfg.Announcer.FlushInterval,
	})
	announcer.Start(ctx)

	dispatcher := handler.NewIntentDispatcher(conversationService, messageService, announcer)
	subscriber := msgNats.NewIntentSubscriber(natsClient.Conn(), dispatcher, msgNats.SubscriberConfig{})
	if err := subscriber.Start(ctx); err != nil {
		logger.Error("Failed to start intent subscriber", "error", err)
		os.Exit(1)
	}

	healthChecker := health.NewChecker(natsClient.Conn(), redisClient, db)
	go startHealthServer(healthChecker, cfg.Server.HealthAddr, logger)

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expire)
	conversationHandler := handler.NewConversationHandler(conversationService)
	messageHandler := handler.NewMessageHandler(messageService, conversationService)

	engine := router.SetupRouter(cfg, jwtService, conversationHandler, messageHandler)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: engine,
	}

	go func() {
		logger.Info("HTTP server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	logger.Info("Messaging service started", "name", cfg.App.Name)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	subscriber.Stop()
	announcer.Stop()
	cancel()

	logger.Info("Messaging service stopped")
}

func startHealthServer(healthChecker *health.Checker, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/health", healthChecker)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if healthChecker.IsHealthy(r.Context()) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Not Ready"))
		}
	})

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logger.Info("Health check server started", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Health check server failed", "error", err)
	}
}

func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}
