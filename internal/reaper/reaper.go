// Package reaper force-resolves approval requests the reviewer never
// answered. It runs on a fixed schedule and reads the timeout threshold from
// runtime settings on every pass, so operators can tune it without a deploy.
package reaper

import (
	"context"
	"time"

	"storybot/internal/domain"
	"storybot/internal/infra"
	"storybot/internal/metrics"
	"storybot/internal/settings"
)

// ThresholdSource yields the current timeout threshold.
type ThresholdSource interface {
	GetDuration(ctx context.Context, key string, unit time.Duration) (time.Duration, error)
}

// Notifier tells the reviewer an approval expired.
type Notifier interface {
	NotifyTimeout(ctx context.Context, item *domain.QueueItem)
}

// Options controls how the reaper is configured.
type Options struct {
	Repo     domain.QueueRepository
	Settings ThresholdSource
	Notifier Notifier
	Logger   *infra.Logger
}

// Reaper scans for stalled approvals and times them out.
type Reaper struct {
	repo     domain.QueueRepository
	settings ThresholdSource
	notifier Notifier
	logger   *infra.Logger
}

func New(opts Options) *Reaper {
	return &Reaper{
		repo:     opts.Repo,
		settings: opts.Settings,
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}
}

const fallbackThreshold = 60 * time.Minute

// Run performs one reaper pass and returns the number of items timed out.
// A failure on one item never aborts the rest of the scan.
func (r *Reaper) Run(ctx context.Context) (int, error) {
	threshold, err := r.settings.GetDuration(ctx, settings.KeyApprovalTimeoutMinutes, time.Minute)
	if err != nil || threshold <= 0 {
		if r.logger != nil && err != nil {
			r.logger.Warn().Err(err).Msg("reaper: threshold lookup failed, using fallback")
		}
		threshold = fallbackThreshold
	}

	stalled, err := r.repo.TimedOut(ctx, threshold)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for i := range stalled {
		item := &stalled[i]
		ok, err := r.repo.MarkAsTimeout(ctx, item.ID)
		if err != nil {
			if r.logger != nil {
				r.logger.Error().Err(err).Str("item_id", item.ID).Msg("reaper: timeout transition failed")
			}
			continue
		}
		if !ok {
			// The reviewer resolved it between the scan and the update.
			continue
		}
		reaped++
		metrics.TimeoutsReaped.Inc()
		if r.notifier != nil {
			r.notifier.NotifyTimeout(ctx, item)
		}
		if r.logger != nil {
			r.logger.Info().Str("item_id", item.ID).Dur("threshold", threshold).Msg("reaper: approval timed out")
		}
	}
	return reaped, nil
}
