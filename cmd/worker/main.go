// Package main provides the pull worker entry point for the pixel backend.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pixel-backend/internal/config"
	"github.com/pixel-backend/internal/logging"
	"github.com/pixel-backend/internal/metrics"
	"github.com/pixel-backend/internal/platform"
	"github.com/pixel-backend/internal/pull"
	"github.com/pixel-backend/internal/retry"
	"github.com/pixel-backend/internal/storage"
	"github.com/pixel-backend/internal/taskstore"
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

	redis, err := storage.NewRedisStore(&cfg.Database.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()

	tasks := taskstore.New(redis.Client(), cfg.Pull.StatusTTL, cfg.Pull.ResultTTL)
	queue := pull.NewQueue(redis.Client(), cfg.Pull.QueueKey, cfg.Pull.DequeueTimeout)

	retryConfig := &retry.Config{
		MaxAttempts:  cfg.Pull.MaxRetries,
		InitialDelay: cfg.Pull.RetryBaseDelay,
		MaxDelay:     cfg.Pull.RetryMaxDelay,
		Multiplier:   2.0,
	}

	apiVersion := cfg.Platform.APIVersion
	factory := func(shop, accessToken string) pull.Fetcher {
		return platform.NewClient(shop, accessToken, platform.WithAPIVersion(apiVersion))
	}

	pool := pull.NewWorkerPool(queue, tasks, factory, cfg.Pull.Workers, retryConfig, logger)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	logger.Info("Pull worker started", zap.Int("workers", cfg.Pull.Workers))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down pull worker")
	cancel()
	pool.Wait()
	logger.Info("Pull worker exited")
}
