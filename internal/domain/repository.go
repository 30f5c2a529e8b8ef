package domain

import (
	"context"
	"time"
)

// TransitionFields carries optional column updates applied together with a
// status transition. Nil fields leave the stored value untouched.
type TransitionFields struct {
	EnhancedURL  *string
	PublishedID  *string
	PublishedURL *string
	LastError    *string
	MessageID    *int64
	TargetAt     *time.Time
	SlotID       *string
}

// QueueRepository is the single source of truth for item status. Every
// status change goes through Transition, a conditional update that succeeds
// only when the persisted status equals the expected one.
type QueueRepository interface {
	Enqueue(ctx context.Context, item *QueueItem) (*QueueItem, error)
	GetByID(ctx context.Context, id string) (*QueueItem, error)

	// NextPending claims the oldest pending item by atomically moving it to
	// processing, so concurrent callers never receive the same item. Returns
	// ErrNotFound when the queue is empty.
	NextPending(ctx context.Context) (*QueueItem, error)

	// Transition applies a conditional status update. It returns (false, nil)
	// when the persisted status does not match from, and ErrIllegalTransition
	// when the lifecycle graph forbids from -> to.
	Transition(ctx context.Context, id string, from, to Status, fields TransitionFields) (bool, error)

	MarkProcessing(ctx context.Context, id string) (bool, error)
	MarkAwaitingApproval(ctx context.Context, id string, from Status, messageID int64) (bool, error)
	MarkApproved(ctx context.Context, id string) (bool, error)
	MarkRejected(ctx context.Context, id string) (bool, error)
	MarkScheduled(ctx context.Context, id string, when time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id string, from Status, finalURL, publishedID string) (bool, error)
	MarkFailed(ctx context.Context, id string, from Status, errMsg string) (bool, error)
	MarkAsTimeout(ctx context.Context, id string) (bool, error)

	// TryMarkForRegeneration is the compare-and-set lock guarding against
	// duplicate regenerate callbacks. True means the caller owns the cycle.
	TryMarkForRegeneration(ctx context.Context, id string) (bool, error)

	// SetEnhancement records the enhancement outcome without changing status:
	// a URL on success, an error message on failure.
	SetEnhancement(ctx context.Context, id, enhancedURL, errMsg string) error

	// TimedOut returns awaiting_approval items whose approval request is at
	// least threshold old.
	TimedOut(ctx context.Context, threshold time.Duration) ([]QueueItem, error)

	Stats(ctx context.Context) (map[Status]int, error)
}
