package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"storybot/internal/domain"
	"storybot/internal/enhance"
	"storybot/internal/queuetest"
)

type stubEnhancer struct {
	url   string
	err   error
	calls int
}

func (e *stubEnhancer) Enhance(_ context.Context, _ enhance.Request) (*enhance.Result, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return &enhance.Result{URL: e.url, MIME: "image/png"}, nil
}

type stubPublisher struct {
	id    string
	err   error
	calls int
	urls  []string
}

func (p *stubPublisher) CreateStory(_ context.Context, imageURL, _ string) (string, error) {
	p.calls++
	p.urls = append(p.urls, imageURL)
	if p.err != nil {
		return "", p.err
	}
	return p.id, nil
}

type stubApprovals struct {
	calls int
	err   error
	repo  domain.QueueRepository
}

func (a *stubApprovals) RequestApproval(ctx context.Context, item *domain.QueueItem, from domain.Status) (int64, error) {
	a.calls++
	if a.err != nil {
		return 0, a.err
	}
	if _, err := a.repo.MarkAwaitingApproval(ctx, item.ID, from, int64(a.calls)); err != nil {
		return 0, err
	}
	return int64(a.calls), nil
}

type fixedDelay struct{ d time.Duration }

func (f fixedDelay) GetDuration(context.Context, string, time.Duration) (time.Duration, error) {
	return f.d, nil
}

func newOrchestrator(repo domain.QueueRepository, enh *stubEnhancer, pub *stubPublisher, app *stubApprovals, requireApproval bool) *Orchestrator {
	var enhancer enhance.Enhancer
	if enh != nil {
		enhancer = enh
	}
	o := New(Options{
		Repo:            repo,
		Enhancer:        enhancer,
		Approvals:       app,
		Publisher:       pub,
		Settings:        fixedDelay{},
		RequireApproval: requireApproval,
	})
	o.sleep = func(context.Context, time.Duration) {}
	return o
}

func TestProcessNextItemEnhancesAndPublishes(t *testing.T) {
	repo := queuetest.NewRepo()
	item, _ := repo.Enqueue(context.Background(), &domain.QueueItem{
		SourceURL: "http://img/src.jpg",
		Mode:      domain.ModeImmediate,
	})
	enh := &stubEnhancer{url: "http://img/enhanced.jpg"}
	pub := &stubPublisher{id: "media-1"}
	o := newOrchestrator(repo, enh, pub, nil, false)

	result, err := o.ProcessNextItem(context.Background(), ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessNextItem error: %v", err)
	}
	if !result.Success || result.PublishedID != "media-1" {
		t.Fatalf("result = %+v", result)
	}
	if result.EnhancedURL != "http://img/enhanced.jpg" {
		t.Fatalf("enhanced url = %q", result.EnhancedURL)
	}
	if pub.urls[0] != "http://img/enhanced.jpg" {
		t.Fatalf("published image = %q, want the enhanced one", pub.urls[0])
	}
	stored, _ := repo.GetByID(context.Background(), item.ID)
	if stored.Status != domain.StatusCompleted || stored.PublishedID != "media-1" {
		t.Fatalf("stored = %s %q", stored.Status, stored.PublishedID)
	}
}

func TestProcessNextItemEmptyQueue(t *testing.T) {
	o := newOrchestrator(queuetest.NewRepo(), nil, &stubPublisher{}, nil, false)
	if _, err := o.ProcessNextItem(context.Background(), ProcessOptions{}); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("err = %v, want ErrEmptyQueue", err)
	}
}

func TestProcessNextItemEnhancementFailureFallsBackToSource(t *testing.T) {
	repo := queuetest.NewRepo()
	item, _ := repo.Enqueue(context.Background(), &domain.QueueItem{SourceURL: "http://img/src.jpg"})
	enh := &stubEnhancer{err: errors.New("model overloaded")}
	pub := &stubPublisher{id: "media-1"}
	o := newOrchestrator(repo, enh, pub, nil, false)

	result, err := o.ProcessNextItem(context.Background(), ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessNextItem error: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v, want success despite enhancement failure", result)
	}
	if pub.urls[0] != "http://img/src.jpg" {
		t.Fatalf("published image = %q, want the source image", pub.urls[0])
	}
	stored, _ := repo.GetByID(context.Background(), item.ID)
	if stored.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
	if stored.LastError != "model overloaded" {
		t.Fatalf("last error = %q", stored.LastError)
	}
}

func TestProcessNextItemModelNoneSkipsEnhancement(t *testing.T) {
	repo := queuetest.NewRepo()
	repo.Enqueue(context.Background(), &domain.QueueItem{
		SourceURL: "http://img/src.jpg",
		Model:     domain.ModelNone,
	})
	enh := &stubEnhancer{url: "http://img/enhanced.jpg"}
	pub := &stubPublisher{id: "media-1"}
	o := newOrchestrator(repo, enh, pub, nil, false)

	if _, err := o.ProcessNextItem(context.Background(), ProcessOptions{}); err != nil {
		t.Fatalf("ProcessNextItem error: %v", err)
	}
	if enh.calls != 0 {
		t.Fatalf("enhancer calls = %d, want 0", enh.calls)
	}
	if pub.urls[0] != "http://img/src.jpg" {
		t.Fatalf("published image = %q", pub.urls[0])
	}
}

func TestProcessNextItemRoutesThroughApprovalGate(t *testing.T) {
	repo := queuetest.NewRepo()
	item, _ := repo.Enqueue(context.Background(), &domain.QueueItem{SourceURL: "http://img/src.jpg"})
	enh := &stubEnhancer{url: "http://img/enhanced.jpg"}
	pub := &stubPublisher{id: "media-1"}
	app := &stubApprovals{repo: repo}
	o := newOrchestrator(repo, enh, pub, app, true)

	result, err := o.ProcessNextItem(context.Background(), ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessNextItem error: %v", err)
	}
	if !result.Success || result.Status != string(domain.StatusAwaitingApproval) {
		t.Fatalf("result = %+v", result)
	}
	if app.calls != 1 {
		t.Fatalf("approval requests = %d, want 1", app.calls)
	}
	if pub.calls != 0 {
		t.Fatalf("publish calls = %d, want 0 before approval", pub.calls)
	}
	stored, _ := repo.GetByID(context.Background(), item.ID)
	if stored.Status != domain.StatusAwaitingApproval {
		t.Fatalf("status = %s, want awaiting_approval", stored.Status)
	}
}

func TestProcessNextItemExplicitNonPendingIsSkipped(t *testing.T) {
	repo := queuetest.NewRepo()
	item := repo.Seed(domain.QueueItem{Status: domain.StatusCompleted})
	o := newOrchestrator(repo, nil, &stubPublisher{}, nil, false)

	result, err := o.ProcessNextItem(context.Background(), ProcessOptions{ItemID: item.ID})
	if err != nil {
		t.Fatalf("ProcessNextItem error: %v", err)
	}
	if !result.Skipped || result.Status != string(domain.StatusCompleted) {
		t.Fatalf("result = %+v, want skipped with current status", result)
	}
}

type recordingNotifier struct {
	items  []string
	causes []error
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, item *domain.QueueItem, cause error) {
	n.items = append(n.items, item.ID)
	n.causes = append(n.causes, cause)
}

func TestProcessNextItemPublishFailureMarksFailedAndNotifies(t *testing.T) {
	repo := queuetest.NewRepo()
	item, _ := repo.Enqueue(context.Background(), &domain.QueueItem{
		SourceURL: "http://img/src.jpg",
		Model:     domain.ModelNone,
	})
	pub := &stubPublisher{err: errors.New("publishing api error 403 (permission_denied): nope")}
	notifier := &recordingNotifier{}
	o := newOrchestrator(repo, nil, pub, nil, false)
	o.notifier = notifier

	result, err := o.ProcessNextItem(context.Background(), ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessNextItem error: %v", err)
	}
	if result.Success {
		t.Fatalf("result = %+v, want failure", result)
	}
	if result.Error == "" {
		t.Fatal("result error text empty")
	}
	stored, _ := repo.GetByID(context.Background(), item.ID)
	if stored.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if len(notifier.items) != 1 || notifier.items[0] != item.ID {
		t.Fatalf("notified = %v, want [%s]: a failed item must not be silent", notifier.items, item.ID)
	}
}

func TestProcessAllPendingDrainsQueue(t *testing.T) {
	repo := queuetest.NewRepo()
	for i := 0; i < 3; i++ {
		repo.Enqueue(context.Background(), &domain.QueueItem{
			SourceURL: "http://img/src.jpg",
			Model:     domain.ModelNone,
		})
	}
	pub := &stubPublisher{id: "media-1"}
	o := newOrchestrator(repo, nil, pub, nil, false)

	batch, err := o.ProcessAllPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessAllPending error: %v", err)
	}
	if batch.Processed != 3 || batch.Failed != 0 {
		t.Fatalf("batch = %+v", batch)
	}
	stats, _ := repo.Stats(context.Background())
	if stats[domain.StatusCompleted] != 3 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestProcessAllPendingCountsFailures(t *testing.T) {
	repo := queuetest.NewRepo()
	repo.Enqueue(context.Background(), &domain.QueueItem{SourceURL: "http://img/a.jpg", Model: domain.ModelNone})
	repo.Enqueue(context.Background(), &domain.QueueItem{SourceURL: "http://img/b.jpg", Model: domain.ModelNone})
	pub := &stubPublisher{err: errors.New("boom")}
	o := newOrchestrator(repo, nil, pub, nil, false)

	batch, err := o.ProcessAllPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessAllPending error: %v", err)
	}
	if batch.Processed != 0 || batch.Failed != 2 {
		t.Fatalf("batch = %+v", batch)
	}
}
