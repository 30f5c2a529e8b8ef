// Package queuetest provides an in-memory QueueRepository with the same
// compare-and-set semantics as the Postgres store, for use in tests.
package queuetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storybot/internal/domain"
)

// Repo is a mutex-backed in-memory queue. Transitions are genuinely
// conditional, so concurrency races behave the way they would against the
// real database.
type Repo struct {
	mu    sync.Mutex
	items map[string]*domain.QueueItem
	now   func() time.Time
}

func NewRepo() *Repo {
	return &Repo{
		items: make(map[string]*domain.QueueItem),
		now:   time.Now,
	}
}

// SetNow overrides the clock, for timeout tests.
func (r *Repo) SetNow(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Seed inserts an item verbatim, bypassing defaults and validation.
func (r *Repo) Seed(item domain.QueueItem) *domain.QueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = r.now()
	}
	item.UpdatedAt = item.CreatedAt
	copied := item
	r.items[copied.ID] = &copied
	return &copied
}

func (r *Repo) Enqueue(_ context.Context, item *domain.QueueItem) (*domain.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *item
	stored.ApplyDefaults()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.CreatedAt = r.now()
	stored.UpdatedAt = stored.CreatedAt
	r.items[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (r *Repo) GetByID(_ context.Context, id string) (*domain.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *item
	return &out, nil
}

func (r *Repo) NextPending(_ context.Context) (*domain.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *domain.QueueItem
	for _, item := range r.items {
		if item.Status != domain.StatusPending {
			continue
		}
		if oldest == nil || item.CreatedAt.Before(oldest.CreatedAt) {
			oldest = item
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	oldest.Status = domain.StatusProcessing
	r.stamp(oldest)
	out := *oldest
	return &out, nil
}

func (r *Repo) Transition(_ context.Context, id string, from, to domain.Status, fields domain.TransitionFields) (bool, error) {
	if !from.Valid() || !to.Valid() || !domain.CanTransition(from, to) {
		return false, domain.ErrIllegalTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok || item.Status != from {
		return false, nil
	}
	item.Status = to
	if fields.EnhancedURL != nil {
		item.EnhancedURL = *fields.EnhancedURL
	}
	if fields.PublishedID != nil {
		item.PublishedID = *fields.PublishedID
	}
	if fields.PublishedURL != nil {
		item.PublishedURL = *fields.PublishedURL
	}
	if fields.LastError != nil {
		item.LastError = *fields.LastError
	}
	if fields.MessageID != nil {
		item.MessageID = *fields.MessageID
	}
	if fields.TargetAt != nil {
		target := *fields.TargetAt
		item.TargetAt = &target
	}
	if fields.SlotID != nil {
		item.SlotID = *fields.SlotID
	}
	r.stamp(item)
	return true, nil
}

func (r *Repo) MarkProcessing(ctx context.Context, id string) (bool, error) {
	return r.Transition(ctx, id, domain.StatusPending, domain.StatusProcessing, domain.TransitionFields{})
}

func (r *Repo) MarkAwaitingApproval(ctx context.Context, id string, from domain.Status, messageID int64) (bool, error) {
	return r.Transition(ctx, id, from, domain.StatusAwaitingApproval, domain.TransitionFields{MessageID: &messageID})
}

func (r *Repo) MarkApproved(ctx context.Context, id string) (bool, error) {
	return r.Transition(ctx, id, domain.StatusAwaitingApproval, domain.StatusApproved, domain.TransitionFields{})
}

func (r *Repo) MarkRejected(ctx context.Context, id string) (bool, error) {
	return r.Transition(ctx, id, domain.StatusAwaitingApproval, domain.StatusRejected, domain.TransitionFields{})
}

func (r *Repo) MarkScheduled(ctx context.Context, id string, when time.Time) (bool, error) {
	return r.Transition(ctx, id, domain.StatusApproved, domain.StatusScheduled, domain.TransitionFields{TargetAt: &when})
}

func (r *Repo) MarkCompleted(ctx context.Context, id string, from domain.Status, finalURL, publishedID string) (bool, error) {
	return r.Transition(ctx, id, from, domain.StatusCompleted, domain.TransitionFields{
		PublishedURL: &finalURL,
		PublishedID:  &publishedID,
	})
}

func (r *Repo) MarkFailed(ctx context.Context, id string, from domain.Status, errMsg string) (bool, error) {
	return r.Transition(ctx, id, from, domain.StatusFailed, domain.TransitionFields{LastError: &errMsg})
}

func (r *Repo) MarkAsTimeout(ctx context.Context, id string) (bool, error) {
	return r.Transition(ctx, id, domain.StatusAwaitingApproval, domain.StatusTimeout, domain.TransitionFields{})
}

func (r *Repo) TryMarkForRegeneration(ctx context.Context, id string) (bool, error) {
	return r.Transition(ctx, id, domain.StatusAwaitingApproval, domain.StatusRegenerating, domain.TransitionFields{})
}

// SetEnhancement assigns only non-empty values, like the coalesce in the
// real store, so a failed regeneration keeps the previous enhanced image.
func (r *Repo) SetEnhancement(_ context.Context, id, enhancedURL, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if enhancedURL != "" {
		item.EnhancedURL = enhancedURL
	}
	if errMsg != "" {
		item.LastError = errMsg
	}
	r.stamp(item)
	return nil
}

func (r *Repo) TimedOut(_ context.Context, threshold time.Duration) ([]domain.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-threshold)
	var out []domain.QueueItem
	for _, item := range r.items {
		if item.Status != domain.StatusAwaitingApproval || item.ApprovalAt == nil {
			continue
		}
		if !item.ApprovalAt.After(cutoff) {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ApprovalAt.Before(*out[j].ApprovalAt) })
	return out, nil
}

func (r *Repo) Stats(_ context.Context) (map[domain.Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := make(map[domain.Status]int)
	for _, item := range r.items {
		stats[item.Status]++
	}
	return stats, nil
}

func (r *Repo) stamp(item *domain.QueueItem) {
	now := r.now()
	item.UpdatedAt = now
	switch item.Status {
	case domain.StatusProcessing:
		item.ProcessingAt = &now
	case domain.StatusAwaitingApproval:
		item.ApprovalAt = &now
	case domain.StatusCompleted:
		item.CompletedAt = &now
	case domain.StatusFailed:
		item.FailedAt = &now
	case domain.StatusRejected:
		item.RejectedAt = &now
	case domain.StatusTimeout:
		item.TimedOutAt = &now
	}
}

var _ domain.QueueRepository = (*Repo)(nil)
