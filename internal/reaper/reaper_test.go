package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"storybot/internal/domain"
	"storybot/internal/queuetest"
)

type fixedThreshold struct {
	d   time.Duration
	err error
}

func (f fixedThreshold) GetDuration(context.Context, string, time.Duration) (time.Duration, error) {
	return f.d, f.err
}

type recordingNotifier struct {
	items []string
}

func (n *recordingNotifier) NotifyTimeout(_ context.Context, item *domain.QueueItem) {
	n.items = append(n.items, item.ID)
}

func seedAwaiting(repo *queuetest.Repo, age time.Duration) *domain.QueueItem {
	item := repo.Seed(domain.QueueItem{Status: domain.StatusProcessing, SourceURL: "http://img/a.jpg"})
	base := time.Now().Add(-age)
	repo.SetNow(func() time.Time { return base })
	if _, err := repo.MarkAwaitingApproval(context.Background(), item.ID, domain.StatusProcessing, 10); err != nil {
		panic(err)
	}
	repo.SetNow(time.Now)
	out, _ := repo.GetByID(context.Background(), item.ID)
	return out
}

func TestRunTimesOutOnlyItemsPastThreshold(t *testing.T) {
	repo := queuetest.NewRepo()
	old := seedAwaiting(repo, 90*time.Minute)
	fresh := seedAwaiting(repo, 5*time.Minute)
	notifier := &recordingNotifier{}
	r := New(Options{Repo: repo, Settings: fixedThreshold{d: 60 * time.Minute}, Notifier: notifier})

	reaped, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("reaped = %d, want 1", reaped)
	}

	timedOut, _ := repo.GetByID(context.Background(), old.ID)
	if timedOut.Status != domain.StatusTimeout {
		t.Fatalf("old item status = %s, want timeout", timedOut.Status)
	}
	kept, _ := repo.GetByID(context.Background(), fresh.ID)
	if kept.Status != domain.StatusAwaitingApproval {
		t.Fatalf("fresh item status = %s, want awaiting_approval", kept.Status)
	}
	if len(notifier.items) != 1 || notifier.items[0] != old.ID {
		t.Fatalf("notified = %v, want [%s]", notifier.items, old.ID)
	}
}

func TestRunFallsBackWhenThresholdLookupFails(t *testing.T) {
	repo := queuetest.NewRepo()
	old := seedAwaiting(repo, 2*time.Hour)
	r := New(Options{Repo: repo, Settings: fixedThreshold{err: errors.New("db down")}, Notifier: &recordingNotifier{}})

	reaped, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("reaped = %d, want 1 via the fallback threshold", reaped)
	}
	stored, _ := repo.GetByID(context.Background(), old.ID)
	if stored.Status != domain.StatusTimeout {
		t.Fatalf("status = %s, want timeout", stored.Status)
	}
}

func TestRunSkipsItemsResolvedDuringScan(t *testing.T) {
	repo := queuetest.NewRepo()
	item := seedAwaiting(repo, 90*time.Minute)

	// The reviewer approves between the scan and the conditional update.
	racing := &racingRepo{Repo: repo, approveOnScan: item.ID}
	notifier := &recordingNotifier{}
	r := New(Options{Repo: racing, Settings: fixedThreshold{d: 60 * time.Minute}, Notifier: notifier})

	reaped, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("reaped = %d, want 0", reaped)
	}
	if len(notifier.items) != 0 {
		t.Fatalf("notified = %v, want none", notifier.items)
	}
	stored, _ := repo.GetByID(context.Background(), item.ID)
	if stored.Status != domain.StatusApproved {
		t.Fatalf("status = %s, want approved", stored.Status)
	}
}

// racingRepo approves an item right after it is returned by the scan.
type racingRepo struct {
	*queuetest.Repo
	approveOnScan string
}

func (r *racingRepo) TimedOut(ctx context.Context, threshold time.Duration) ([]domain.QueueItem, error) {
	items, err := r.Repo.TimedOut(ctx, threshold)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ID == r.approveOnScan {
			if _, err := r.Repo.MarkApproved(ctx, item.ID); err != nil {
				return nil, err
			}
		}
	}
	return items, nil
}
