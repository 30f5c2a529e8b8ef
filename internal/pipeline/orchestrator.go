// Package pipeline drives queue items through enhancement and either the
// approval gate or direct publishing. It is stateless between invocations;
// all progress lives in the queue store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storybot/internal/approval"
	"storybot/internal/domain"
	"storybot/internal/enhance"
	"storybot/internal/infra"
	"storybot/internal/metrics"
	"storybot/internal/settings"
)

// ErrEmptyQueue is returned by ProcessNextItem when no pending item exists.
var ErrEmptyQueue = errors.New("pipeline: no pending items")

// DelaySource yields the courtesy delay between items in a batch run.
type DelaySource interface {
	GetDuration(ctx context.Context, key string, unit time.Duration) (time.Duration, error)
}

// Approvals is the gate items pass through when review is required.
type Approvals interface {
	RequestApproval(ctx context.Context, item *domain.QueueItem, from domain.Status) (int64, error)
}

// Publisher publishes an item without a human gate.
type Publisher interface {
	CreateStory(ctx context.Context, imageURL, caption string) (string, error)
}

// Notifier tells the reviewer about items the pipeline marked failed, so no
// terminal outcome is silent even without the approval gate.
type Notifier interface {
	NotifyFailure(ctx context.Context, item *domain.QueueItem, cause error)
}

// Options controls how the orchestrator is configured.
type Options struct {
	Repo      domain.QueueRepository
	Enhancer  enhance.Enhancer
	Approvals Approvals
	Publisher Publisher
	Notifier  Notifier
	Settings  DelaySource
	Logger    *infra.Logger

	// RequireApproval routes items through the human gate. When false the
	// pipeline publishes directly after enhancement.
	RequireApproval bool
}

// Orchestrator pulls items off the queue and runs them through the pipeline.
type Orchestrator struct {
	repo            domain.QueueRepository
	enhancer        enhance.Enhancer
	approvals       Approvals
	publisher       Publisher
	notifier        Notifier
	settings        DelaySource
	logger          *infra.Logger
	requireApproval bool

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		repo:            opts.Repo,
		enhancer:        opts.Enhancer,
		approvals:       opts.Approvals,
		publisher:       opts.Publisher,
		notifier:        opts.Notifier,
		settings:        opts.Settings,
		logger:          opts.Logger,
		requireApproval: opts.RequireApproval,
		sleep:           sleepCtx,
	}
}

// ProcessOptions selects the item and tuning for one pipeline run.
type ProcessOptions struct {
	// ItemID targets a specific item instead of the oldest pending one.
	ItemID string
	// SkipEnhance publishes or routes the item with its current image.
	SkipEnhance bool
}

// Result is the structured outcome of one pipeline run.
type Result struct {
	ItemID      string `json:"item_id"`
	Success     bool   `json:"success"`
	Skipped     bool   `json:"skipped,omitempty"`
	Status      string `json:"status"`
	PublishedID string `json:"published_id,omitempty"`
	EnhancedURL string `json:"enhanced_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchResult aggregates a ProcessAllPending run.
type BatchResult struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

// ProcessNextItem claims one item and runs it to its next resting state:
// awaiting_approval when the gate is on, completed or failed otherwise.
// Targeting an explicit non-pending item yields a skipped result, not an
// error, so external triggers can fire blindly.
func (o *Orchestrator) ProcessNextItem(ctx context.Context, opts ProcessOptions) (*Result, error) {
	item, skipped, err := o.claim(ctx, opts.ItemID)
	if err != nil {
		return nil, err
	}
	if skipped != nil {
		return skipped, nil
	}
	metrics.ItemsProcessed.Inc()

	if !opts.SkipEnhance && o.enhancer != nil && item.Model != domain.ModelNone {
		result, err := o.enhancer.Enhance(ctx, enhance.Request{
			ItemID:       item.ID,
			SourceURL:    item.SourceURL,
			Style:        item.Style,
			Faithfulness: item.Faithfulness,
			AspectRatio:  item.AspectRatio,
		})
		if err != nil {
			// Enhancement is best-effort: record the failure and continue
			// with the original image.
			metrics.EnhancementFailures.Inc()
			if setErr := o.repo.SetEnhancement(ctx, item.ID, "", err.Error()); setErr != nil {
				return nil, setErr
			}
			item.LastError = err.Error()
			if o.logger != nil {
				o.logger.Warn().Err(err).Str("item_id", item.ID).Msg("pipeline: enhancement failed, using source image")
			}
		} else {
			if setErr := o.repo.SetEnhancement(ctx, item.ID, result.URL, ""); setErr != nil {
				return nil, setErr
			}
			item.EnhancedURL = result.URL
		}
	}

	if o.requireApproval {
		messageID, err := o.approvals.RequestApproval(ctx, item, domain.StatusProcessing)
		if err != nil {
			return o.fail(ctx, item, fmt.Errorf("request approval: %w", err))
		}
		if o.logger != nil {
			o.logger.Info().Str("item_id", item.ID).Int64("message_id", messageID).Msg("pipeline: approval requested")
		}
		return &Result{
			ItemID:      item.ID,
			Success:     true,
			Status:      string(domain.StatusAwaitingApproval),
			EnhancedURL: item.EnhancedURL,
		}, nil
	}

	publishedID, err := o.publisher.CreateStory(ctx, item.ImageURL(), approval.ComposeCaption(item))
	if err != nil {
		return o.fail(ctx, item, err)
	}
	if _, err := o.repo.MarkCompleted(ctx, item.ID, domain.StatusProcessing, item.ImageURL(), publishedID); err != nil {
		return nil, err
	}
	metrics.ItemsPublished.Inc()
	if o.logger != nil {
		o.logger.Info().Str("item_id", item.ID).Str("published_id", publishedID).Msg("pipeline: story published")
	}
	return &Result{
		ItemID:      item.ID,
		Success:     true,
		Status:      string(domain.StatusCompleted),
		PublishedID: publishedID,
		EnhancedURL: item.EnhancedURL,
	}, nil
}

// ProcessAllPending drains the queue, pausing between items as a rate-limit
// courtesy, and aggregates per-item outcomes. Item failures do not stop the
// drain.
func (o *Orchestrator) ProcessAllPending(ctx context.Context) (*BatchResult, error) {
	delay := 2 * time.Second
	if o.settings != nil {
		if d, err := o.settings.GetDuration(ctx, settings.KeyInterItemDelaySeconds, time.Second); err == nil && d >= 0 {
			delay = d
		}
	}

	batch := &BatchResult{}
	for {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		result, err := o.ProcessNextItem(ctx, ProcessOptions{})
		if err != nil {
			if errors.Is(err, ErrEmptyQueue) {
				return batch, nil
			}
			return batch, err
		}
		batch.Results = append(batch.Results, *result)
		if result.Success {
			batch.Processed++
		} else {
			batch.Failed++
		}
		o.sleep(ctx, delay)
	}
}

// claim resolves and marks the target item processing. The second return is
// non-nil for the explicit-id skip case.
func (o *Orchestrator) claim(ctx context.Context, itemID string) (*domain.QueueItem, *Result, error) {
	if itemID == "" {
		item, err := o.repo.NextPending(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil, ErrEmptyQueue
			}
			return nil, nil, err
		}
		return item, nil, nil
	}

	item, err := o.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item.Status != domain.StatusPending {
		return nil, &Result{
			ItemID:  item.ID,
			Skipped: true,
			Status:  string(item.Status),
		}, nil
	}
	ok, err := o.repo.MarkProcessing(ctx, item.ID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		// Lost the claim race to a concurrent run.
		fresh, err := o.repo.GetByID(ctx, item.ID)
		if err != nil {
			return nil, nil, err
		}
		return nil, &Result{ItemID: item.ID, Skipped: true, Status: string(fresh.Status)}, nil
	}
	item.Status = domain.StatusProcessing
	return item, nil, nil
}

func (o *Orchestrator) fail(ctx context.Context, item *domain.QueueItem, cause error) (*Result, error) {
	if _, err := o.repo.MarkFailed(ctx, item.ID, domain.StatusProcessing, cause.Error()); err != nil {
		return nil, err
	}
	metrics.ItemsFailed.Inc()
	if o.notifier != nil {
		o.notifier.NotifyFailure(ctx, item, cause)
	}
	if o.logger != nil {
		o.logger.Error().Err(cause).Str("item_id", item.ID).Msg("pipeline: item failed")
	}
	return &Result{
		ItemID: item.ID,
		Status: string(domain.StatusFailed),
		Error:  cause.Error(),
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
