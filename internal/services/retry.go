package services

import (
	"context"
	"time"
)

// RetryPolicy bounds retries of transient provider failures.
type RetryPolicy struct {
	// Attempts is the number of retries after the first failure.
	Attempts int
	Backoff  time.Duration
}

// Retry invokes fn, retrying transient failures with linear backoff. The last
// error is returned when all attempts are exhausted. Non-transient errors and
// context cancellation abort immediately.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= policy.Attempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * policy.Backoff
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
