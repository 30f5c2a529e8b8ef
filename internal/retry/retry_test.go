package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestExecuteSucceedsAfterTransientFailures(t *testing.T) {
	const failures = 3
	calls := 0
	hooks := 0

	p := fastPolicy()
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		hooks++
		if !errors.Is(err, errBoom) {
			t.Fatalf("hook err = %v, want errBoom", err)
		}
		if attempt != hooks {
			t.Fatalf("attempt = %d, want %d", attempt, hooks)
		}
	}

	err := p.Execute(context.Background(), func() error {
		calls++
		if calls <= failures {
			return errBoom
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if calls != failures+1 {
		t.Fatalf("calls = %d, want %d", calls, failures+1)
	}
	if hooks != failures {
		t.Fatalf("hook invocations = %d, want %d", hooks, failures)
	}
}

func TestExecuteStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	hooks := 0

	p := fastPolicy()
	p.IsRetryable = func(err error) bool { return false }
	p.OnRetry = func(int, error, time.Duration) { hooks++ }

	err := p.Execute(context.Background(), func() error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want errBoom unchanged", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if hooks != 0 {
		t.Fatalf("hook invocations = %d, want 0", hooks)
	}
}

func TestExecuteReturnsLastErrorAfterExhaustion(t *testing.T) {
	calls := 0
	final := errors.New("final failure")

	p := fastPolicy()
	p.MaxAttempts = 3

	err := p.Execute(context.Background(), func() error {
		calls++
		if calls == 3 {
			return final
		}
		return errBoom
	})
	if !errors.Is(err, final) {
		t.Fatalf("err = %v, want the last error", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	p := fastPolicy()
	p.InitialDelay = 50 * time.Millisecond

	err := p.Execute(ctx, func() error {
		calls++
		cancel()
		return errBoom
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoReturnsValue(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errBoom
		}
		return "container-1", nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if got != "container-1" {
		t.Fatalf("Do = %q, want container-1", got)
	}
}
