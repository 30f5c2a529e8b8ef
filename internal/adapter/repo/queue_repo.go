package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storybot/internal/domain"
	"storybot/internal/infra"
	"storybot/internal/sqlinline"
)

// QueueRepositoryPG implements domain.QueueRepository on PostgreSQL. Every
// status change runs as a single conditional UPDATE keyed on the expected
// prior status; RowsAffected distinguishes "transitioned" from "someone else
// got there first".
type QueueRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewQueueRepository creates a queue repository backed by PostgreSQL.
func NewQueueRepository(sql infra.SQLExecutor) *QueueRepositoryPG {
	return &QueueRepositoryPG{sql: sql}
}

// Enqueue assigns defaults, writes the item once and returns the stored row.
func (r *QueueRepositoryPG) Enqueue(ctx context.Context, item *domain.QueueItem) (*domain.QueueItem, error) {
	item.ApplyDefaults()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertItem,
		item.ID,
		string(item.Status),
		item.SourceURL,
		item.Caption,
		item.Category,
		item.Product,
		item.Model,
		item.Style,
		item.Faithfulness,
		item.AspectRatio,
		string(item.Mode),
		item.TargetAt,
		item.SlotID,
	)
	return scanItem(row)
}

// GetByID fetches an item by its identifier.
func (r *QueueRepositoryPG) GetByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	item, err := scanItem(r.sql.QueryRow(ctx, sqlinline.QGetItem, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// NextPending claims the oldest pending item. The claim and the read are one
// statement, so two concurrent callers can never receive the same item.
func (r *QueueRepositoryPG) NextPending(ctx context.Context) (*domain.QueueItem, error) {
	item, err := scanItem(r.sql.QueryRow(ctx, sqlinline.QClaimNextPending))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// Transition performs the conditional status update described by the
// lifecycle graph. A false return means the persisted status did not match
// the expected one; that is a signal, not an error.
func (r *QueueRepositoryPG) Transition(ctx context.Context, id string, from, to domain.Status, fields domain.TransitionFields) (bool, error) {
	if !from.Valid() || !to.Valid() {
		return false, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
	}
	if !domain.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QTransitionItem,
		id,
		string(from),
		string(to),
		fields.EnhancedURL,
		fields.PublishedID,
		fields.PublishedURL,
		fields.LastError,
		fields.MessageID,
		fields.TargetAt,
		fields.SlotID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *QueueRepositoryPG) MarkProcessing(ctx context.Context, id string) (bool, error) {
	return r.Transition(ctx, id, domain.StatusPending, domain.StatusProcessing, domain.TransitionFields{})
}

func (r *QueueRepositoryPG) MarkAwaitingApproval(ctx context.Context, id string, from domain.Status, messageID int64) (bool, error) {
	return r.Transition(ctx, id, from, domain.StatusAwaitingApproval, domain.TransitionFields{MessageID: &messageID})
}

func (r *QueueRepositoryPG) MarkApproved(ctx context.Context, id string) (bool, error) {
	return r.Transition(ctx, id, domain.StatusAwaitingApproval, domain.StatusApproved, domain.TransitionFields{})
}

func (r *QueueRepositoryPG) MarkRejected(ctx context.Context, id string) (bool, error) {
	return r.Transition(ctx, id, domain.StatusAwaitingApproval, domain.StatusRejected, domain.TransitionFields{})
}

func (r *QueueRepositoryPG) MarkScheduled(ctx context.Context, id string, when time.Time) (bool, error) {
	return r.Transition(ctx, id, domain.StatusApproved, domain.StatusScheduled, domain.TransitionFields{TargetAt: &when})
}

func (r *QueueRepositoryPG) MarkCompleted(ctx context.Context, id string, from domain.Status, finalURL, publishedID string) (bool, error) {
	return r.Transition(ctx, id, from, domain.StatusCompleted, domain.TransitionFields{
		PublishedURL: &finalURL,
		PublishedID:  &publishedID,
	})
}

func (r *QueueRepositoryPG) MarkFailed(ctx context.Context, id string, from domain.Status, errMsg string) (bool, error) {
	return r.Transition(ctx, id, from, domain.StatusFailed, domain.TransitionFields{LastError: &errMsg})
}

func (r *QueueRepositoryPG) MarkAsTimeout(ctx context.Context, id string) (bool, error) {
	return r.Transition(ctx, id, domain.StatusAwaitingApproval, domain.StatusTimeout, domain.TransitionFields{})
}

// TryMarkForRegeneration acquires the regeneration lock: a compare-and-set
// from awaiting_approval to regenerating. Exactly one of several concurrent
// callers observes true.
func (r *QueueRepositoryPG) TryMarkForRegeneration(ctx context.Context, id string) (bool, error) {
	return r.Transition(ctx, id, domain.StatusAwaitingApproval, domain.StatusRegenerating, domain.TransitionFields{})
}

// SetEnhancement records the enhancement outcome without a status change.
func (r *QueueRepositoryPG) SetEnhancement(ctx context.Context, id, enhancedURL, errMsg string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QSetEnhancement, id, nullable(enhancedURL), nullable(errMsg))
	return err
}

// TimedOut returns awaiting_approval items whose approval request is at
// least threshold old.
func (r *QueueRepositoryPG) TimedOut(ctx context.Context, threshold time.Duration) ([]domain.QueueItem, error) {
	cutoff := time.Now().Add(-threshold)
	rows, err := r.sql.Query(ctx, sqlinline.QTimedOutItems, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Stats returns item counts per status.
func (r *QueueRepositoryPG) Stats(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QQueueStats)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[domain.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[domain.Status(status)] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.QueueItem, error) {
	var item domain.QueueItem
	var status, mode string
	if err := row.Scan(
		&item.ID,
		&status,
		&item.SourceURL,
		&item.EnhancedURL,
		&item.Caption,
		&item.Category,
		&item.Product,
		&item.Model,
		&item.Style,
		&item.Faithfulness,
		&item.AspectRatio,
		&mode,
		&item.TargetAt,
		&item.SlotID,
		&item.MessageID,
		&item.PublishedID,
		&item.PublishedURL,
		&item.LastError,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.ProcessingAt,
		&item.ApprovalAt,
		&item.CompletedAt,
		&item.FailedAt,
		&item.RejectedAt,
		&item.TimedOutAt,
	); err != nil {
		return nil, err
	}
	item.Status = domain.Status(status)
	item.Mode = domain.ScheduleMode(mode)
	return &item, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.QueueRepository = (*QueueRepositoryPG)(nil)
