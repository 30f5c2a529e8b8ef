package domain

import (
	"testing"
	"time"
)

func TestTerminalStatuses(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusRejected, StatusFailed, StatusTimeout}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	open := []Status{StatusPending, StatusProcessing, StatusAwaitingApproval, StatusRegenerating, StatusApproved, StatusScheduled}
	for _, s := range open {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusAwaitingApproval, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusAwaitingApproval, StatusRegenerating, true},
		{StatusRegenerating, StatusAwaitingApproval, true},
		{StatusAwaitingApproval, StatusTimeout, true},
		{StatusApproved, StatusScheduled, true},
		{StatusScheduled, StatusCompleted, true},

		{StatusPending, StatusCompleted, false},
		{StatusCompleted, StatusPending, false},
		{StatusRejected, StatusAwaitingApproval, false},
		{StatusTimeout, StatusApproved, false},
		{StatusFailed, StatusProcessing, false},
		{StatusAwaitingApproval, StatusProcessing, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNoTransitionLeavesTerminalState(t *testing.T) {
	all := []Status{StatusPending, StatusProcessing, StatusAwaitingApproval, StatusRegenerating,
		StatusApproved, StatusScheduled, StatusCompleted, StatusRejected, StatusFailed, StatusTimeout}
	for _, from := range all {
		if !from.Terminal() {
			continue
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Fatalf("terminal state %s must not transition to %s", from, to)
			}
		}
	}
}

func TestImageURLPrefersEnhanced(t *testing.T) {
	item := &QueueItem{SourceURL: "https://cdn.example.com/a.jpg"}
	if got := item.ImageURL(); got != "https://cdn.example.com/a.jpg" {
		t.Fatalf("ImageURL = %q, want source", got)
	}
	item.EnhancedURL = "https://cdn.example.com/a-enhanced.jpg"
	if got := item.ImageURL(); got != "https://cdn.example.com/a-enhanced.jpg" {
		t.Fatalf("ImageURL = %q, want enhanced", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	item := &QueueItem{SourceURL: "https://cdn.example.com/a.jpg"}
	item.ApplyDefaults()
	if item.Status != StatusPending {
		t.Fatalf("Status = %s, want pending", item.Status)
	}
	if item.Model != DefaultModel || item.Style != DefaultStyle || item.AspectRatio != DefaultAspectRatio {
		t.Fatalf("defaults not applied: %+v", item)
	}
	if item.Faithfulness != DefaultFaithfulness {
		t.Fatalf("Faithfulness = %v, want %v", item.Faithfulness, DefaultFaithfulness)
	}
	if item.Mode != ModeImmediate {
		t.Fatalf("Mode = %s, want immediate", item.Mode)
	}

	when := time.Now()
	custom := &QueueItem{Model: ModelNone, Style: "warm", Faithfulness: 0.9, AspectRatio: "1:1", Mode: ModeScheduled, TargetAt: &when}
	custom.ApplyDefaults()
	if custom.Model != ModelNone || custom.Style != "warm" || custom.Faithfulness != 0.9 || custom.AspectRatio != "1:1" || custom.Mode != ModeScheduled {
		t.Fatalf("explicit values overwritten: %+v", custom)
	}
}
