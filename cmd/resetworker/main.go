// Package main provides a standalone daily reset worker entry point.
// Run it separately when the API server runs with multiple replicas so
// only one process drives the global reset.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prime-rewards/internal/config"
	"github.com/prime-rewards/internal/logging"
	"github.com/prime-rewards/internal/storage"
	"github.com/prime-rewards/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisStore(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	userRepo := storage.NewUserRepository(postgres)
	adWatchRepo := storage.NewAdWatchRepository(redis)

	resetWorker, err := worker.NewResetWorker(&worker.ResetWorkerConfig{
		Users:        userRepo,
		Watches:      adWatchRepo,
		PollInterval: cfg.Reset.PollInterval,
		ResetHour:    cfg.Reset.Hour,
		Location:     cfg.ResetLocation(),
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create reset worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := resetWorker.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start reset worker")
	}

	logger.Info("Reset worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := resetWorker.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Reset worker forced to shutdown")
	}

	logger.Info("Worker exited")
}
