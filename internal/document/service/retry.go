package service

import (
	"context"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 10 * time.Millisecond
)

// RetryPolicy bounds the internal retries taken when a mutation loses a
// concurrency race. Validation and transition errors are never retried.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy allows three attempts with linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: defaultRetryAttempts, Backoff: defaultRetryBackoff}
}

// do runs fn until it succeeds, fails with a non-conflict error, or the
// attempts run out. onRetry is called before each retry.
func (p RetryPolicy) do(ctx context.Context, fn func() error, onRetry func(attempt int)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !isConflict(err) || attempt == attempts {
			return err
		}
		if onRetry != nil {
			onRetry(attempt)
		}
		timer := time.NewTimer(p.Backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
