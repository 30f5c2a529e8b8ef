// Package retry provides the backoff-with-jitter executor used by every
// outbound call in the pipeline.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy controls how an operation is retried. The zero value is usable:
// three attempts, 1s initial delay doubling up to 30s, ±10% jitter, every
// error retryable.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// IsRetryable classifies errors. A false return aborts immediately and
	// the error is surfaced unchanged.
	IsRetryable func(error) bool

	// OnRetry is invoked after each failed attempt, before sleeping.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2
	}
	return p
}

// Execute runs op under the policy. Exhausting all attempts returns the last
// error unchanged; a non-retryable error returns on the first occurrence.
func (p Policy) Execute(ctx context.Context, op func() error) error {
	p = p.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0
	b.Reset()

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if p.IsRetryable != nil && !p.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	attempt := 0
	notify := func(err error, delay time.Duration) {
		attempt++
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
	}

	return backoff.RetryNotify(
		wrapped,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx),
		notify,
	)
}

// Do runs op under the policy and returns its value alongside the final error.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	var result T
	err := p.Execute(ctx, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
