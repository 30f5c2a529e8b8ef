// Package approval bridges the human reviewer and the queue state machine.
// It sends approval prompts through the messaging bot and turns inbound
// callback actions into conditional status transitions.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storybot/internal/domain"
	"storybot/internal/enhance"
	"storybot/internal/infra"
	"storybot/internal/metrics"
	"storybot/internal/publisher"
	"storybot/internal/telegram"
)

// Bot is the subset of the messaging client the gateway sends through.
type Bot interface {
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, keyboard [][]telegram.InlineButton) (int64, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	EditMessageCaption(ctx context.Context, chatID, messageID int64, caption string) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// Publisher is the publishing entry point invoked on approval.
type Publisher interface {
	CreateStory(ctx context.Context, imageURL, caption string) (string, error)
}

// Options controls how the gateway is configured.
type Options struct {
	Repo      domain.QueueRepository
	Bot       Bot
	Publisher Publisher
	Enhancer  enhance.Enhancer
	ChatID    int64
	Logger    *infra.Logger
}

// Gateway owns the approval lifecycle: prompt, callback, regeneration lock.
type Gateway struct {
	repo      domain.QueueRepository
	bot       Bot
	publisher Publisher
	enhancer  enhance.Enhancer
	chatID    int64
	logger    *infra.Logger
}

func NewGateway(opts Options) *Gateway {
	return &Gateway{
		repo:      opts.Repo,
		bot:       opts.Bot,
		publisher: opts.Publisher,
		enhancer:  opts.Enhancer,
		chatID:    opts.ChatID,
		logger:    opts.Logger,
	}
}

const (
	actionApprove    = "approve"
	actionReject     = "reject"
	actionRegenerate = "regenerate"
)

// RequestApproval sends the item's image with approve/reject/regenerate
// actions to the reviewer chat and records the message id on the item via a
// conditional transition out of from.
func (g *Gateway) RequestApproval(ctx context.Context, item *domain.QueueItem, from domain.Status) (int64, error) {
	keyboard := [][]telegram.InlineButton{
		{
			{Text: "✅ Approve", CallbackData: actionApprove + "_" + item.ID},
			{Text: "❌ Reject", CallbackData: actionReject + "_" + item.ID},
		},
		{
			{Text: "🔄 Regenerate", CallbackData: actionRegenerate + "_" + item.ID},
		},
	}
	messageID, err := g.bot.SendPhoto(ctx, g.chatID, item.ImageURL(), promptCaption(item), keyboard)
	if err != nil {
		return 0, fmt.Errorf("send approval prompt: %w", err)
	}
	ok, err := g.repo.MarkAwaitingApproval(ctx, item.ID, from, messageID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("item %s is no longer %s", item.ID, from)
	}
	return messageID, nil
}

// HandleCallback resolves one inline keyboard action. Unauthorized chats and
// malformed tokens return typed errors for the webhook handler to map to
// HTTP statuses; stale or duplicate callbacks are acknowledged and dropped.
func (g *Gateway) HandleCallback(ctx context.Context, cb *telegram.CallbackQuery) error {
	if cb.Message == nil || cb.Message.Chat.ID != g.chatID {
		return domain.ErrUnauthorizedChat
	}

	action, itemID, ok := strings.Cut(cb.Data, "_")
	if !ok || action == "" || itemID == "" {
		g.ack(ctx, cb.ID, "Unrecognized action")
		return domain.ErrMalformedCallback
	}
	switch action {
	case actionApprove, actionReject, actionRegenerate:
	default:
		g.ack(ctx, cb.ID, "Unrecognized action")
		return domain.ErrMalformedCallback
	}
	metrics.CallbacksHandled.WithLabelValues(action).Inc()

	item, err := g.repo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Stale token from a deleted or migrated item.
			g.ack(ctx, cb.ID, "This item no longer exists")
			return nil
		}
		return err
	}
	if item.Status != domain.StatusAwaitingApproval {
		g.ack(ctx, cb.ID, "Already handled")
		if g.logger != nil {
			g.logger.Info().Str("item_id", item.ID).Str("status", string(item.Status)).
				Str("action", action).Msg("approval: stale callback ignored")
		}
		return nil
	}

	switch action {
	case actionApprove:
		return g.approve(ctx, cb.ID, item)
	case actionReject:
		return g.reject(ctx, cb.ID, item)
	default:
		return g.regenerate(ctx, cb.ID, item)
	}
}

func (g *Gateway) approve(ctx context.Context, callbackID string, item *domain.QueueItem) error {
	ok, err := g.repo.MarkApproved(ctx, item.ID)
	if err != nil {
		return err
	}
	if !ok {
		g.ack(ctx, callbackID, "Already handled")
		return nil
	}
	g.ack(ctx, callbackID, "Approved")

	if item.Mode != domain.ModeImmediate && item.TargetAt != nil {
		if _, err := g.repo.MarkScheduled(ctx, item.ID, *item.TargetAt); err != nil {
			return err
		}
		g.disarm(ctx, item, "✅ Approved, scheduled")
		g.notify(ctx, fmt.Sprintf("Story %s approved, scheduled for %s.",
			shortID(item.ID), item.TargetAt.Format("2006-01-02 15:04")))
		return nil
	}

	publishedID, err := g.publisher.CreateStory(ctx, item.ImageURL(), ComposeCaption(item))
	if err != nil {
		if _, markErr := g.repo.MarkFailed(ctx, item.ID, domain.StatusApproved, err.Error()); markErr != nil {
			return markErr
		}
		metrics.ItemsFailed.Inc()
		g.disarm(ctx, item, "⚠️ Approved, but publishing failed")
		g.notify(ctx, publisher.UserMessage(err))
		if g.logger != nil {
			g.logger.Error().Err(err).Str("item_id", item.ID).Msg("approval: publish failed")
		}
		return nil
	}

	if _, err := g.repo.MarkCompleted(ctx, item.ID, domain.StatusApproved, item.ImageURL(), publishedID); err != nil {
		return err
	}
	metrics.ItemsPublished.Inc()
	g.disarm(ctx, item, "✅ Approved and published")
	g.notify(ctx, fmt.Sprintf("Story %s published (id %s).", shortID(item.ID), publishedID))
	return nil
}

func (g *Gateway) reject(ctx context.Context, callbackID string, item *domain.QueueItem) error {
	ok, err := g.repo.MarkRejected(ctx, item.ID)
	if err != nil {
		return err
	}
	if !ok {
		g.ack(ctx, callbackID, "Already handled")
		return nil
	}
	g.ack(ctx, callbackID, "Rejected")
	g.disarm(ctx, item, "❌ Rejected")
	g.notify(ctx, fmt.Sprintf("Story %s rejected.", shortID(item.ID)))
	return nil
}

// regenerate runs a fresh enhancement cycle behind the compare-and-set lock,
// so a duplicated callback never starts a second cycle for the same item.
func (g *Gateway) regenerate(ctx context.Context, callbackID string, item *domain.QueueItem) error {
	locked, err := g.repo.TryMarkForRegeneration(ctx, item.ID)
	if err != nil {
		return err
	}
	if !locked {
		g.ack(ctx, callbackID, "Already regenerating")
		return nil
	}
	g.ack(ctx, callbackID, "Regenerating")
	g.disarm(ctx, item, "🔄 Regenerating…")

	if g.enhancer != nil && item.Model != domain.ModelNone {
		result, err := g.enhancer.Enhance(ctx, enhance.Request{
			ItemID:       item.ID,
			SourceURL:    item.SourceURL,
			Style:        item.Style,
			Faithfulness: item.Faithfulness,
			AspectRatio:  item.AspectRatio,
		})
		if err != nil {
			metrics.EnhancementFailures.Inc()
			if setErr := g.repo.SetEnhancement(ctx, item.ID, "", err.Error()); setErr != nil {
				return g.failRegeneration(ctx, item, setErr)
			}
			g.notify(ctx, fmt.Sprintf("Regeneration of %s failed (%v), keeping the previous image.", shortID(item.ID), err))
			if g.logger != nil {
				g.logger.Warn().Err(err).Str("item_id", item.ID).Msg("approval: regeneration enhance failed")
			}
		} else {
			if setErr := g.repo.SetEnhancement(ctx, item.ID, result.URL, ""); setErr != nil {
				return g.failRegeneration(ctx, item, setErr)
			}
		}
	}

	fresh, err := g.repo.GetByID(ctx, item.ID)
	if err != nil {
		return g.failRegeneration(ctx, item, err)
	}
	if _, err := g.RequestApproval(ctx, fresh, domain.StatusRegenerating); err != nil {
		return g.failRegeneration(ctx, item, err)
	}
	return nil
}

// failRegeneration releases a stranded regeneration cycle into failed. The
// reaper only scans awaiting_approval and duplicate callbacks no-op on
// regenerating, so an item left there would never resolve.
func (g *Gateway) failRegeneration(ctx context.Context, item *domain.QueueItem, cause error) error {
	if _, markErr := g.repo.MarkFailed(ctx, item.ID, domain.StatusRegenerating, cause.Error()); markErr != nil {
		return markErr
	}
	metrics.ItemsFailed.Inc()
	g.notify(ctx, fmt.Sprintf("Regeneration of %s could not be completed: %v", shortID(item.ID), cause))
	if g.logger != nil {
		g.logger.Error().Err(cause).Str("item_id", item.ID).Msg("approval: regeneration cycle failed")
	}
	return nil
}

// NotifyFailure tells the reviewer an item ended in failed outside the
// callback flow, with credential and throttling causes kept distinguishable.
func (g *Gateway) NotifyFailure(ctx context.Context, item *domain.QueueItem, cause error) {
	g.notify(ctx, fmt.Sprintf("Story %s: %s", shortID(item.ID), publisher.UserMessage(cause)))
}

// NotifyTimeout tells the reviewer an approval expired and removes the action
// controls from the original prompt.
func (g *Gateway) NotifyTimeout(ctx context.Context, item *domain.QueueItem) {
	g.disarm(ctx, item, "⏰ Approval timed out")
	g.notify(ctx, fmt.Sprintf("Story %s was not reviewed in time and has been marked as timed out.", shortID(item.ID)))
}

// disarm edits the original approval prompt, dropping its inline keyboard.
func (g *Gateway) disarm(ctx context.Context, item *domain.QueueItem, caption string) {
	if item.MessageID == 0 {
		return
	}
	if err := g.bot.EditMessageCaption(ctx, g.chatID, item.MessageID, caption); err != nil && g.logger != nil {
		g.logger.Warn().Err(err).Str("item_id", item.ID).Msg("approval: edit prompt failed")
	}
}

func (g *Gateway) notify(ctx context.Context, text string) {
	if err := g.bot.SendMessage(ctx, g.chatID, text); err != nil && g.logger != nil {
		g.logger.Warn().Err(err).Msg("approval: notify failed")
	}
}

func (g *Gateway) ack(ctx context.Context, callbackID, text string) {
	if err := g.bot.AnswerCallbackQuery(ctx, callbackID, text); err != nil && g.logger != nil {
		g.logger.Warn().Err(err).Msg("approval: answer callback failed")
	}
}
