package llm

import (
	"context"
	"time"
)

// rpsLimiter is a lightweight token-bucket limiter that throttles to at most
// R requests per second with an optional burst capacity.
type rpsLimiter struct {
	tokens chan struct{}
	stopCh chan struct{}
}

// newRPSLimiter returns nil when rps <= 0; Acquire on nil is a no-op.
func newRPSLimiter(rps float64, burst int) *rpsLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	l := &rpsLimiter{
		tokens: make(chan struct{}, burst),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}

	period := time.Duration(float64(time.Second) / rps)
	if period <= 0 {
		period = time.Millisecond
	}
	go l.refill(period)
	return l
}

func (l *rpsLimiter) refill(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case l.tokens <- struct{}{}:
			default:
			}
		case <-l.stopCh:
			return
		}
	}
}

// Acquire blocks until a token is available or the context is canceled.
func (l *rpsLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return context.Canceled
	case <-l.tokens:
		return nil
	}
}

// Stop terminates the refill goroutine.
func (l *rpsLimiter) Stop() {
	if l == nil {
		return
	}
	close(l.stopCh)
}
