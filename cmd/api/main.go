package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/client"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/config"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/db"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/http"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/lock"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/logger"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/metrics"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/repository"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/service"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/migrations"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Server.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting panel fulfillment service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.Registry("panel_fulfillment")

	// Initialize database
	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.Schema, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := db.ApplyMigrations(ctx, pool, migrations.Files); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database migrated")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("failed closing redis", zap.Error(err))
		}
	}()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	logRepo := repository.NewLogRepository(pool)

	// Initialize clients
	httpClient := client.NewHTTPClient(cfg.HTTPClient.Timeout)
	mailClient := client.NewMailClient(cfg.Email.ResendAPIKey, cfg.Email.From(), m, log)
	telegramClient := client.NewTelegramClient(cfg.Telegram.APIURL, cfg.Telegram.BotToken, httpClient, m)
	panelFactory := func(baseURL, apiKey string) service.PanelAPI {
		return client.NewPanelClient(baseURL, apiKey, httpClient, m, log)
	}

	if !cfg.Telegram.Configured() {
		log.Warn("telegram not configured, admin notifications disabled")
	}

	// Initialize services
	fulfillmentService := service.NewFulfillmentService(
		orderRepo,
		settingsRepo,
		logRepo,
		lock.NewOrderLocker(rdb, cfg.Redis.LockTTL),
		service.NewProvisioner(cfg.Panel.ServerNamePrefix, log),
		panelFactory,
		mailClient,
		telegramClient,
		cfg.Telegram.AdminChatID,
		m,
		log,
	)

	broadcastService := service.NewBroadcastService(settingsRepo, telegramClient, cfg.Telegram.AdminChatID, m, log)

	// Initialize HTTP server
	server := http.NewServer(cfg, fulfillmentService, broadcastService, logRepo, log)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}

	log.Info("server exited")
	return nil
}
