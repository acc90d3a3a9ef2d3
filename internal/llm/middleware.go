package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	llmclient "vibedocs/internal/llm/client"
)

// Middleware decorates an LLMClient to inject cross-cutting concerns
// (rate limiting, timeouts, logging, etc.).
type Middleware func(LLMClient) LLMClient

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner LLMClient, mws ...Middleware) LLMClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			out = mws[i](out)
		}
	}
	return out
}

// passthrough forwards everything except Generate.
type passthrough struct {
	next LLMClient
}

func (p passthrough) Name() string                  { return p.next.Name() }
func (p passthrough) Provider() llmclient.Provider  { return p.next.Provider() }
func (p passthrough) Close() error                  { return p.next.Close() }

// -------- Rate Limiting --------

// RateLimit limits request rate using rpsLimiter.
// If rps <= 0, the limiter is disabled.
func RateLimit(rps float64, burst int) Middleware {
	rl := newRPSLimiter(rps, burst) // shared by every client this middleware wraps
	return func(next LLMClient) LLMClient {
		if rl == nil {
			return next
		}
		return &rateLimited{passthrough: passthrough{next}, rl: rl}
	}
}

type rateLimited struct {
	passthrough
	rl *rpsLimiter
}

func (c *rateLimited) Generate(ctx context.Context, req Request) (Response, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return nil, err
	}
	return c.next.Generate(ctx, req)
}

// RateLimitFromEnv reads RPS/BURST from environment variables with the
// given prefixes in priority order. For example, ("LLM","GEMINI")
// checks LLM_RPS/LLM_BURST first, then GEMINI_RPS/GEMINI_BURST.
func RateLimitFromEnv(prefixes ...string) Middleware {
	find := func(suffix string) string {
		for _, p := range prefixes {
			if p == "" {
				continue
			}
			if v := os.Getenv(p + suffix); v != "" {
				return v
			}
		}
		return ""
	}
	rps, _ := strconv.ParseFloat(find("_RPS"), 64)
	burst, _ := strconv.Atoi(find("_BURST"))
	return RateLimit(rps, burst)
}

// -------- Timeout & detachment --------

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 90 * time.Second

// Timeout gives every call its own deadline. A call that runs out of time
// fails with a Timeout classification.
func Timeout(d time.Duration) Middleware {
	if d <= 0 {
		d = DefaultTimeout
	}
	return func(next LLMClient) LLMClient {
		return &timed{passthrough: passthrough{next}, d: d}
	}
}

type timed struct {
	passthrough
	d time.Duration
}

func (c *timed) Generate(ctx context.Context, req Request) (Response, error) {
	tctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	resp, err := c.next.Generate(tctx, req)
	if err != nil && tctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return nil, &llmclient.Error{
			Kind:    llmclient.KindTimeout,
			Status:  http.StatusGatewayTimeout,
			Message: fmt.Sprintf("request timed out after %s", c.d),
			Err:     err,
		}
	}
	return resp, err
}

// Detached runs the call on a context that keeps the caller's values but
// ignores its cancellation. Once started, a call is only ended by its own
// deadline; place Timeout after Detached.
func Detached() Middleware {
	return func(next LLMClient) LLMClient {
		return &detached{passthrough{next}}
	}
}

type detached struct {
	passthrough
}

func (c *detached) Generate(ctx context.Context, req Request) (Response, error) {
	return c.next.Generate(context.WithoutCancel(ctx), req)
}
