package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storybot/internal/adapter/repo"
	"storybot/internal/approval"
	"storybot/internal/enhance"
	httpapi "storybot/internal/http"
	"storybot/internal/http/handlers"
	"storybot/internal/infra"
	"storybot/internal/pipeline"
	"storybot/internal/publisher"
	"storybot/internal/reaper"
	"storybot/internal/settings"
	"storybot/internal/storage"
	"storybot/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	queueRepo := repo.NewQueueRepository(runner)
	settingsStore := settings.New(runner, cfg.SettingsCacheTTL)

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open file storage")
	}

	bot := telegram.NewClient(telegram.Options{
		Token:   cfg.BotToken,
		BaseURL: cfg.BotBaseURL,
		Logger:  &logger,
	})
	settleDelay, err := settingsStore.GetDuration(ctx, settings.KeySettleDelaySeconds, time.Second)
	if err != nil {
		logger.Warn().Err(err).Msg("settle delay lookup failed, using gateway default")
	}
	gateway := publisher.NewGateway(publisher.Options{
		BaseURL:     cfg.PublishBaseURL,
		AccessToken: cfg.PublishToken,
		AccountID:   cfg.PublishAccountID,
		SettleDelay: settleDelay,
		Logger:      &logger,
	})
	enhancer, err := enhance.NewGeminiEnhancer(enhance.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
		Store:   fileStore,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build enhancer")
	}

	approvals := approval.NewGateway(approval.Options{
		Repo:      queueRepo,
		Bot:       bot,
		Publisher: gateway,
		Enhancer:  enhancer,
		ChatID:    cfg.BotChatID,
		Logger:    &logger,
	})
	orchestrator := pipeline.New(pipeline.Options{
		Repo:            queueRepo,
		Enhancer:        enhancer,
		Approvals:       approvals,
		Publisher:       gateway,
		Notifier:        approvals,
		Settings:        settingsStore,
		Logger:          &logger,
		RequireApproval: cfg.RequireApproval,
	})
	sweeper := reaper.New(reaper.Options{
		Repo:     queueRepo,
		Settings: settingsStore,
		Notifier: approvals,
		Logger:   &logger,
	})

	app := &handlers.App{
		Repo:      queueRepo,
		Approvals: approvals,
		Pipeline:  orchestrator,
		Reaper:    sweeper,
		Settings:  settingsStore,
		Logger:    &logger,
	}

	router := httpapi.NewRouter(app, logger, cfg.StoragePath)
	server := infra.NewHTTPServer(cfg, router)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msgf("API listening on %s", server.Addr())
	if err := server.Run(runCtx); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}
