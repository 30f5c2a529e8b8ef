// The scheduler binary runs the periodic jobs: the approval timeout reaper on
// a fixed five-minute cadence and, when configured, automated production runs
// that drain the pending queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"storybot/internal/adapter/repo"
	"storybot/internal/approval"
	"storybot/internal/enhance"
	"storybot/internal/infra"
	"storybot/internal/pipeline"
	"storybot/internal/publisher"
	"storybot/internal/reaper"
	"storybot/internal/settings"
	"storybot/internal/storage"
	"storybot/internal/telegram"
)

const reaperSchedule = "*/5 * * * *"

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: db connection failed")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	queueRepo := repo.NewQueueRepository(runner)
	settingsStore := settings.New(runner, cfg.SettingsCacheTTL)

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: file storage failed")
	}

	bot := telegram.NewClient(telegram.Options{
		Token:   cfg.BotToken,
		BaseURL: cfg.BotBaseURL,
		Logger:  &logger,
	})
	settleDelay, err := settingsStore.GetDuration(ctx, settings.KeySettleDelaySeconds, time.Second)
	if err != nil {
		logger.Warn().Err(err).Msg("scheduler: settle delay lookup failed, using gateway default")
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
		logger.Fatal().Err(err).Msg("scheduler: enhancer failed")
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

	c := cron.New()

	if _, err := c.AddFunc(reaperSchedule, func() {
		reaped, err := sweeper.Run(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("scheduler: reaper run failed")
			return
		}
		if reaped > 0 {
			logger.Info().Int("reaped", reaped).Msg("scheduler: reaper pass done")
		}
	}); err != nil {
		logger.Fatal().Err(err).Msg("scheduler: invalid reaper schedule")
	}

	if cfg.ProductionCron != "" {
		if _, err := c.AddFunc(cfg.ProductionCron, func() {
			batch, err := orchestrator.ProcessAllPending(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("scheduler: production run failed")
				return
			}
			logger.Info().Int("processed", batch.Processed).Int("failed", batch.Failed).
				Msg("scheduler: production run done")
		}); err != nil {
			logger.Fatal().Err(err).Msg("scheduler: invalid production schedule")
		}
	}

	c.Start()
	logger.Info().Str("reaper_schedule", reaperSchedule).Msg("scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info().Msg("scheduler stopped")
}
