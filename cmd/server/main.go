// Package main provides the API server entry point for the pixel backend.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pixel-backend/internal/api"
	"github.com/pixel-backend/internal/config"
	"github.com/pixel-backend/internal/logging"
	"github.com/pixel-backend/internal/metrics"
	"github.com/pixel-backend/internal/platform"
	"github.com/pixel-backend/internal/pull"
	"github.com/pixel-backend/internal/ratelimit"
	"github.com/pixel-backend/internal/service"
	"github.com/pixel-backend/internal/storage"
	"github.com/pixel-backend/internal/taskstore"
	"github.com/pixel-backend/internal/types"
	"github.com/pixel-backend/internal/webhook"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Sync() // nolint:errcheck

	if err := metrics.Register(nil); err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	// Initialize database connections
	logger.Info("Connecting to databases")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer postgres.Close()

	redis, err := storage.NewRedisStore(&cfg.Database.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	shopRepo := storage.NewShopRepository(postgres)
	extensionRepo := storage.NewExtensionRepository(postgres)
	eventRepo := storage.NewEventRepository(postgres)

	// Redis-backed pull pipeline pieces shared with the worker process
	tasks := taskstore.New(redis.Client(), cfg.Pull.StatusTTL, cfg.Pull.ResultTTL)
	queue := pull.NewQueue(redis.Client(), cfg.Pull.QueueKey, cfg.Pull.DequeueTimeout)
	orchestrator := pull.NewOrchestrator(queue, tasks, cfg.Pull.DefaultBatchSize, logger)

	// Initialize services
	eventLimiter := ratelimit.NewFixedWindowLimiter(redis.Client(), "events",
		cfg.RateLimit.EventsPerWindow, cfg.RateLimit.EventWindow)
	eventService := service.NewEventService(extensionRepo, eventRepo, eventLimiter, logger)

	apiVersion := cfg.Platform.APIVersion
	extensionService := service.NewExtensionService(shopRepo, extensionRepo,
		func(shop, accessToken string) service.PixelAdmin {
			return platform.NewClient(shop, accessToken, platform.WithAPIVersion(apiVersion))
		}, logger)

	reconciler := webhook.NewReconciler(logger)
	shopService := service.NewShopService(shopRepo, reconciler,
		func(shop, accessToken string) webhook.SubscriptionAPI {
			return platform.NewClient(shop, accessToken, platform.WithAPIVersion(apiVersion))
		}, cfg.Platform.CallbackURL(), logger)

	privacyService := service.NewPrivacyService(eventRepo, shopRepo, extensionRepo, logger)

	// Wire webhook handlers. Redactions run after the delivery is acked;
	// uninstalls are quick enough to run inline.
	dispatcher := webhook.NewDispatcher(shopRepo)
	dispatcher.HandleDeferred(types.TopicCustomersDataRequest, privacyService.CustomerDataRequest)
	dispatcher.HandleDeferred(types.TopicCustomersRedact, privacyService.CustomerRedact)
	dispatcher.HandleDeferred(types.TopicShopRedact, privacyService.ShopRedact)
	dispatcher.Handle(types.TopicAppUninstalled, privacyService.AppUninstalled)

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		WebhookSecret:     cfg.Platform.APISecret,
		RequestsPerSecond: cfg.RateLimit.APIRequestsPerSecond,
		Burst:             cfg.RateLimit.APIBurst,
	}

	server := api.NewServer(serverConfig,
		shopService, extensionService, eventService,
		orchestrator, tasks, shopRepo, dispatcher, logger)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight deferred webhook handlers finish.
	dispatcher.Wait()

	logger.Info("Server exited")
}
