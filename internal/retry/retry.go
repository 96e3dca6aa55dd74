package retry

import (
	"context"
	"time"
)

// Policy bounds per-item retries of external provider calls. Retries are
// always per item, never per stage.
type Policy struct {
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// BaseDelay is the first backoff; each further attempt doubles it.
	BaseDelay time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Nil means retry everything.
	Retryable func(error) bool

	// sleep is a test hook; nil means time.Sleep.
	Sleep func(time.Duration)
}

// WithRetryable returns a copy of the policy using the given retryability
// classifier.
func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn
	return p
}

// Do runs fn with exponential backoff until it succeeds, the attempts are
// exhausted, the error is not retryable, or ctx is done. The last error is
// returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
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
		if i < attempts-1 {
			sleep(delay)
			delay *= 2
		}
	}
	return lastErr
}
