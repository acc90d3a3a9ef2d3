package llm

import "context"

type ctxKeyDocument struct{}
type ctxKeyAttempt struct{}

// WithDocument tags ctx with the document key being generated.
func WithDocument(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKeyDocument{}, key)
}

// DocumentFrom returns the document key stored in the context.
func DocumentFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyDocument{}).(string); ok && v != "" {
		return v
	}
	return "-"
}

// WithAttempt tags ctx with the 1-based attempt number.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, ctxKeyAttempt{}, attempt)
}

// AttemptFrom returns the attempt number, or 1 when unset.
func AttemptFrom(ctx context.Context) int {
	if v, ok := ctx.Value(ctxKeyAttempt{}).(int); ok && v > 0 {
		return v
	}
	return 1
}
