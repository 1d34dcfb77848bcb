package main

// @title           Relay Service API
// @version         1.0
// @description     Real-time presence, messaging and notification relay
// @host            localhost:3001
// @BasePath        /api/v1
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "relay-service/docs"
	"relay-service/internal/adapters/kafka"
	"relay-service/internal/adapters/storage"
	"relay-service/internal/api/handlers"
	"relay-service/internal/api/middleware"
	"relay-service/internal/api/routes"
	"relay-service/internal/config"
	"relay-service/internal/database"
	"relay-service/internal/events"
	"relay-service/internal/logger"
	"relay-service/internal/messaging"
	"relay-service/internal/notification"
	"relay-service/internal/presence"
	"relay-service/internal/repository"
	"relay-service/internal/services"
	"relay-service/internal/websocket"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if err := logger.Setup(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		log.Fatal("Failed to configure logger:", err)
	}
	gin.SetMode(gin.ReleaseMode)

	slog.Info("Starting relay server", "driver", cfg.Database.Driver)

	db, err := database.Open(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	store := repository.NewStore(db)

	readiness := map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) }),
	}

	var (
		redisClient  *database.RedisClient
		redisService *services.RedisService
	)
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisConnection(cfg.Redis.URI)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		redisService = services.NewRedisService(redisClient)
		readiness["redis"] = redisClient
	}

	bg := &events.Background{}

	var (
		publisher events.Publisher = events.NopPublisher{}
		producer  *kafka.Producer
	)
	if cfg.Kafka.Enabled() {
		producer, err = kafka.InitKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		if err != nil {
			slog.Error("Failed to connect to Kafka", "error", err)
			os.Exit(1)
		}
		publisher = producer
	}

	var mediaHandler *handlers.MediaHandler
	if cfg.MinIO.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		media, err := storage.NewMinIOClient(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
		cancel()
		if err != nil {
			slog.Error("Failed to connect to MinIO", "error", err)
			os.Exit(1)
		}
		mediaHandler = handlers.NewMediaHandler(media, 0)
	}

	hub := websocket.NewHub()
	go hub.Run()

	registryOpts := []presence.RegistryOption{presence.WithBackground(bg)}
	if redisService != nil {
		registryOpts = append(registryOpts, presence.WithStatusMirror(redisService))
	}
	registry := presence.NewSessionRegistry(store, registryOpts...)
	rooms := presence.NewRoomMembership()
	broadcaster := presence.NewBroadcaster(registry, rooms, hub)

	notifications := notification.NewRouter(store, broadcaster, registry,
		notification.WithPublisher(publisher),
		notification.WithBackground(bg),
	)
	relay := messaging.NewRelay(store, broadcaster,
		messaging.WithPublisher(publisher),
		messaging.WithBackground(bg),
	)

	eventHandlers := websocket.NewHandlers(websocket.HandlersConfig{
		Hub:           hub,
		Registry:      registry,
		Rooms:         rooms,
		Broadcaster:   broadcaster,
		Notifications: notifications,
		Relay:         relay,
		Publisher:     publisher,
		Background:    bg,
	})

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	var consumer *kafka.Consumer
	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled() && cfg.Kafka.DomainTopic != "" {
		consumer = kafka.NewConsumer(kafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.DomainTopic, cfg.Kafka.GroupID), notifications)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(consumerCtx); err != nil {
				slog.Error("Domain event consumer failed", "error", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	auth := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.ExpirationTime)
	deps := routes.Dependencies{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Auth:           auth,
		WebSocket: handlers.NewWSHandler(hub, eventHandlers, websocket.NewUpgrader(cfg.Server.AllowedOrigins), websocket.ClientOptions{
			SendBuffer:     cfg.WebSocket.SendBuffer,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		}),
		Presence:      handlers.NewPresenceHandler(broadcaster, registry, hub.Metrics(), optionalMirror(redisService)),
		Health:        handlers.NewHealthHandler(readiness),
		Notifications: handlers.NewNotificationHandler(store),
		Media:         mediaHandler,
	}
	if redisService != nil {
		deps.RateLimit = middleware.NewRateLimitMiddleware(redisService)
	}
	router := routes.NewRouter(deps)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := hub.Stop(10 * time.Second); err != nil {
		slog.Error("Hub did not stop cleanly", "error", err)
	}

	stopConsumer()
	<-consumerDone
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			slog.Error("Failed to close Kafka consumer", "error", err)
		}
	}

	bg.Wait()

	if producer != nil {
		if err := producer.Close(); err != nil {
			slog.Error("Failed to close Kafka producer", "error", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("Failed to close Redis", "error", err)
		}
	}
	if err := database.Close(db); err != nil {
		slog.Error("Failed to close database", "error", err)
	}

	slog.Info("Server stopped")
}

// optionalMirror keeps a nil *RedisService from becoming a non-nil interface
func optionalMirror(s *services.RedisService) handlers.StatusReader {
	if s == nil {
		return nil
	}
	return s
}
