// Package main provides the API server entry point for the rewards platform.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prime-rewards/internal/ads"
	"github.com/prime-rewards/internal/api"
	"github.com/prime-rewards/internal/config"
	"github.com/prime-rewards/internal/gate"
	"github.com/prime-rewards/internal/geo"
	"github.com/prime-rewards/internal/ledger"
	"github.com/prime-rewards/internal/logging"
	"github.com/prime-rewards/internal/storage"
	"github.com/prime-rewards/internal/tasks"
	"github.com/prime-rewards/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)
	logger := logging.GetGlobalLogger()

	logger.Info("Connecting to databases...")

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

	// ClickHouse is optional: without it the analytics archive and the
	// windowed leaderboard are skipped
	var clickhouse *storage.ClickHouseDB
	if cfg.Database.ClickHouse.Host != "" {
		clickhouse, err = storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unavailable, continuing without archive")
			clickhouse = nil
		} else {
			defer clickhouse.Close()
		}
	}

	logger.Info("Database connections established")

	// Repositories
	userRepo := storage.NewUserRepository(postgres)
	txRepo := storage.NewTransactionRepository(postgres)
	taskRepo := storage.NewTaskRepository(postgres)
	referralRepo := storage.NewReferralRepository(postgres)
	deviceRepo := storage.NewDeviceRepository(postgres)
	configRepo := storage.NewConfigRepository(postgres, redis)
	adWatchRepo := storage.NewAdWatchRepository(redis)

	var archiveRepo *storage.ArchiveRepository
	if clickhouse != nil {
		archiveRepo = storage.NewArchiveRepository(clickhouse)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := archiveRepo.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Warn("archive schema setup failed, continuing without archive")
			archiveRepo = nil
		}
		cancel()
	}

	// Services
	logger.Info("Initializing services...")

	resetLoc := cfg.ResetLocation()

	var archiver ledger.Archiver
	if archiveRepo != nil {
		archiver = archiveRepo
	}
	ledgerSvc := ledger.NewService(userRepo, txRepo, referralRepo, configRepo, archiver, resetLoc, logger)

	deviceGate := gate.NewGate(deviceRepo, configRepo, logger)

	geoClient := geo.NewClient(&http.Client{Timeout: cfg.Geo.Timeout}, geo.DefaultProviders(), logger)
	guard := geo.NewGuard(geoClient, configRepo, logger)

	var membership tasks.MembershipChecker
	if cfg.Telegram.BotToken != "" {
		checker, err := tasks.NewTelegramChecker(cfg.Telegram.BotToken)
		if err != nil {
			logger.WithError(err).Warn("Telegram checker unavailable, membership tasks will fail closed")
		} else {
			membership = checker
		}
	}
	taskSvc := tasks.NewService(taskRepo, userRepo, ledgerSvc, membership, logger)

	registry := ads.NewRegistry(cfg.Ads.Providers)
	hub := ads.NewPostbackHub()
	setupCtx, setupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := ads.SetupRegistry(setupCtx, registry, hub, configRepo, &http.Client{Timeout: 10 * time.Second}, logger); err != nil {
		setupCancel()
		logger.WithError(err).Fatal("Failed to set up ad providers")
	}
	setupCancel()
	orchestrator := ads.NewOrchestrator(registry, adWatchRepo, ledgerSvc, configRepo, cfg.Ads.CallbackTimeout, logger)

	resetWorker, err := worker.NewResetWorker(&worker.ResetWorkerConfig{
		Users:        userRepo,
		Watches:      adWatchRepo,
		PollInterval: cfg.Reset.PollInterval,
		ResetHour:    cfg.Reset.Hour,
		Location:     resetLoc,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create reset worker")
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if err := resetWorker.Start(workerCtx); err != nil {
		logger.WithError(err).Fatal("Failed to start reset worker")
	}

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BotToken:          cfg.Telegram.BotToken,
		InitDataTTL:       cfg.Telegram.InitDataTTL,
		AllowMockUser:     cfg.Telegram.AllowMockUser,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	}

	var archive api.EarningsArchive
	if archiveRepo != nil {
		archive = archiveRepo
	}

	server := api.NewServer(serverConfig, &api.Deps{
		Users:    userRepo,
		Txs:      txRepo,
		Ledger:   ledgerSvc,
		Ads:      orchestrator,
		Tasks:    taskSvc,
		Gate:     deviceGate,
		Guard:    guard,
		Lookup:   geoClient,
		Configs:  configRepo,
		Archive:  archive,
		Clock:    resetWorker,
		Postback: hub,
	}, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if err := resetWorker.Stop(ctx); err != nil {
		logger.WithError(err).Error("Reset worker forced to shutdown")
	}

	logger.Info("Server exited")
}
