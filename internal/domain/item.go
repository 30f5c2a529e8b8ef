package domain

import "time"

// Status enumerates queue item lifecycle states.
type Status string

const (
	StatusPending          Status = "pending"
	StatusProcessing       Status = "processing"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusRegenerating     Status = "regenerating"
	StatusApproved         Status = "approved"
	StatusScheduled        Status = "scheduled"
	StatusCompleted        Status = "completed"
	StatusRejected         Status = "rejected"
	StatusFailed           Status = "failed"
	StatusTimeout          Status = "timeout"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusAwaitingApproval, StatusRegenerating,
		StatusApproved, StatusScheduled, StatusCompleted, StatusRejected,
		StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// transitions is the closed lifecycle graph. Anything not listed here is
// illegal and rejected by the store before touching the database.
var transitions = map[Status][]Status{
	StatusPending:          {StatusProcessing},
	StatusProcessing:       {StatusAwaitingApproval, StatusCompleted, StatusFailed},
	StatusAwaitingApproval: {StatusApproved, StatusRejected, StatusRegenerating, StatusTimeout, StatusFailed},
	StatusRegenerating:     {StatusAwaitingApproval, StatusFailed},
	StatusApproved:         {StatusCompleted, StatusScheduled, StatusFailed},
	StatusScheduled:        {StatusCompleted, StatusFailed},
}

// CanTransition reports whether the lifecycle graph permits from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ScheduleMode controls when an approved item is published.
type ScheduleMode string

const (
	ModeImmediate ScheduleMode = "immediate"
	ModeScheduled ScheduleMode = "scheduled"
	ModeOptimal   ScheduleMode = "optimal"
)

// Enhancement parameter defaults applied on enqueue.
const (
	DefaultModel        = "gemini-2.5-flash-image"
	DefaultStyle        = "clean"
	DefaultFaithfulness = 0.55
	DefaultAspectRatio  = "9:16"

	// ModelNone disables the enhancement step for an item.
	ModelNone = "none"
)

// QueueItem is one unit of story content moving through the pipeline.
type QueueItem struct {
	ID     string
	Status Status

	SourceURL   string
	EnhancedURL string
	Caption     string
	Category    string
	Product     string

	Model        string
	Style        string
	Faithfulness float64
	AspectRatio  string

	Mode     ScheduleMode
	TargetAt *time.Time
	SlotID   string

	// MessageID references the bot approval prompt, 0 when none was sent.
	MessageID    int64
	PublishedID  string
	PublishedURL string
	LastError    string

	CreatedAt    time.Time
	UpdatedAt    time.Time
	ProcessingAt *time.Time
	ApprovalAt   *time.Time
	CompletedAt  *time.Time
	FailedAt     *time.Time
	RejectedAt   *time.Time
	TimedOutAt   *time.Time
}

// ImageURL returns the enhanced image when available, else the source image.
func (q *QueueItem) ImageURL() string {
	if q.EnhancedURL != "" {
		return q.EnhancedURL
	}
	return q.SourceURL
}

// ApplyDefaults fills zero-valued enhancement parameters and mode on intake.
func (q *QueueItem) ApplyDefaults() {
	if q.Model == "" {
		q.Model = DefaultModel
	}
	if q.Style == "" {
		q.Style = DefaultStyle
	}
	if q.Faithfulness == 0 {
		q.Faithfulness = DefaultFaithfulness
	}
	if q.AspectRatio == "" {
		q.AspectRatio = DefaultAspectRatio
	}
	if q.Mode == "" {
		q.Mode = ModeImmediate
	}
	if q.Status == "" {
		q.Status = StatusPending
	}
}
