package bankclient

import (
	"context"
	"time"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
)

// RetryPolicy controls Retry. Zero values fall back to the defaults.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries
	// every error.
	Retryable func(err error) bool

	// wait is replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn up to MaxRetries times. Attempt n waits InitialDelay*2^(n-1)
// before the next try. An error rejected by policy.Retryable is returned at
// once. The last error is returned unchanged.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	maxRetries := policy.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	delay := policy.InitialDelay
	if delay <= 0 {
		delay = DefaultInitialDelay
	}
	wait := policy.wait
	if wait == nil {
		wait = sleepContext
	}

	var zero T
	for attempt := 1; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if attempt >= maxRetries || (policy.Retryable != nil && !policy.Retryable(err)) {
			return zero, err
		}
		if waitErr := wait(ctx, delay<<(attempt-1)); waitErr != nil {
			return zero, err
		}
	}
}
