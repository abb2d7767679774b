// Package retry implements a bounded retry loop with exponential backoff and
// a pluggable permanent-failure classifier.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded retry schedule. The delay before attempt N+1 is
// BaseDelay * Multiplier^(N-1).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	// Retryable decides whether an error is worth another attempt. A nil
	// classifier treats every error as retryable.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, the policy is exhausted, the classifier marks
// an error permanent, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}

		if attempt == attempts {
			break
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
		if p.Multiplier > 0 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}

	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
