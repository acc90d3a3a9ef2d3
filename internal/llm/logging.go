package llm

import (
	"context"
	"log"
	"time"
)

// WithLogging logs request size, latency and errors. Provide a custom logger
// or nil to use log.Default(). Credentials are never logged.
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next LLMClient) LLMClient {
		return &logging{passthrough: passthrough{next}, log: logger}
	}
}

type logging struct {
	passthrough
	log *log.Logger
}

func (l *logging) Generate(ctx context.Context, req Request) (Response, error) {
	doc := DocumentFrom(ctx)
	l.log.Printf("LLM request (%s, %s, attempt %d): %d bytes", l.next.Name(), doc, AttemptFrom(ctx), len(req.Prompt)+len(req.SystemPrompt))
	start := time.Now()
	resp, err := l.next.Generate(ctx, req)
	if err != nil {
		l.log.Printf("LLM error (%s, %s) after %s: %v", l.next.Name(), doc, time.Since(start).Round(time.Millisecond), err)
		return resp, err
	}
	l.log.Printf("LLM response (%s, %s) in %s", l.next.Name(), doc, time.Since(start).Round(time.Millisecond))
	return resp, nil
}
