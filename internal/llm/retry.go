package llm

import (
	"context"
	"errors"
	"time"

	llmclient "vibedocs/internal/llm/client"
)

// RetryPolicy retries a call with exponential backoff. The delay after
// failed attempt n (1-based) is BaseDelay * 2^n, multiplied by
// RateLimitFactor when the failure classified as RateLimited.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	RateLimitFactor int
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy is the regeneration policy: three attempts, 2s then 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, RateLimitFactor: 2}
}

// SingleAttempt never retries.
func SingleAttempt() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Delay returns the backoff that follows failed attempt n.
func (p RetryPolicy) Delay(attempt int, err error) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	d := base * time.Duration(1<<attempt)
	if p.RateLimitFactor > 1 && llmclient.IsRateLimited(err) {
		d *= time.Duration(p.RateLimitFactor)
	}
	return d
}

// Attempts returns the normalized attempt budget.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do calls fn until it succeeds, the budget is spent, the error is not
// retryable, or ctx is done. onRetry runs before each backoff, only when
// another attempt follows. The returned count is the number of failed
// attempts: 0 on first-try success.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error, onRetry func(attempt int, err error)) (int, error) {
	budget := p.Attempts()
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	var last error
	for attempt := 1; attempt <= budget; attempt++ {
		err := fn(WithAttempt(ctx, attempt), attempt)
		if err == nil {
			return attempt - 1, nil
		}
		last = err
		if attempt == budget || !retryable(err) {
			return attempt, last
		}
		if ctx.Err() != nil {
			return attempt, last
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if err := sleep(ctx, p.Delay(attempt, err)); err != nil {
			return attempt, last
		}
	}
	return budget, last
}

func retryable(err error) bool {
	var ce *llmclient.Error
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return true
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
