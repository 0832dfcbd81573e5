package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Daler-web-dev/hisbbot/internal/amqp"
	"github.com/Daler-web-dev/hisbbot/internal/cache"
	"github.com/Daler-web-dev/hisbbot/internal/cli"
	"github.com/Daler-web-dev/hisbbot/internal/core"
	apphttp "github.com/Daler-web-dev/hisbbot/internal/http"
	"github.com/Daler-web-dev/hisbbot/internal/ledger"
	applog "github.com/Daler-web-dev/hisbbot/internal/log"
	"github.com/Daler-web-dev/hisbbot/internal/telegram"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	users := cache.NewLRUCache[core.User](cfg.CacheSize, cfg.CacheTTL)
	categories := cache.NewLRUCache[core.Category](cfg.CacheSize*5, cfg.CacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(users)
	cacheManager.Register(categories)
	cacheManager.StartCleanup(10 * time.Minute)

	opts := []ledger.Option{ledger.WithCaches(users, categories)}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// recording keeps working; only the sheet mirror falls behind
			logger.Warn("AMQP unavailable, transaction events disabled", "error", err)
		} else {
			amqpClient = c
			opts = append(opts, ledger.WithPublisher(amqpClient))
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := ledger.NewService(repo, opts...)

	var bot apphttp.UpdateHandler
	if cfg.BotToken != "" {
		api, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			logger.Error("Failed to initialize Telegram bot", "error", err)
			os.Exit(1)
		}
		seenUpdates := cache.NewLRUCache[bool](cfg.CacheSize, cfg.CacheTTL)
		cacheManager.Register(seenUpdates)
		bot = telegram.NewHandler(svc, api, telegram.WithSeenUpdates(seenUpdates))
		logger.Info("Telegram bot ready", "username", api.Self.UserName)
	} else {
		logger.Warn("BOT_TOKEN not set, webhook endpoint disabled")
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Ledger:             svc,
		Bot:                bot,
		DB:                 repo,
		WebhookSecret:      cfg.WebhookSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
	})

	logger.Info("Starting hisbbot server", "port", cfg.Port, applog.FieldOperation, applog.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully", "requests", srv.Metrics().TotalRequests)
}
