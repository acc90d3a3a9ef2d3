package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"vibedocs/internal/documents"
	"vibedocs/internal/llm"
	llmclient "vibedocs/internal/llm/client"
	"vibedocs/internal/todo"
)

// Generator is the provider call the orchestrators depend on. *llm.Adapter
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, cred llmclient.Credential, prompt, systemPrompt string, maxTokens int) (string, error)
}

// Options tunes pacing and retries. Zero fields take production defaults.
type Options struct {
	// DocumentDelay separates consecutive documents of a generation run.
	DocumentDelay time.Duration
	// RateLimitDelay replaces DocumentDelay after a rate-limited failure.
	RateLimitDelay time.Duration
	// RegenerateDelay separates consecutive documents of a regeneration run.
	RegenerateDelay time.Duration
	// GenerateRetry applies to the initial run; RegenerateRetry to targeted reruns.
	GenerateRetry   *llm.RetryPolicy
	RegenerateRetry *llm.RetryPolicy
	// Sleep waits between documents and attempts. Nil uses a timer.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *log.Logger
	// Buffer is the event channel capacity.
	Buffer int
}

func (o Options) withDefaults() Options {
	if o.DocumentDelay <= 0 {
		o.DocumentDelay = 300 * time.Millisecond
	}
	if o.RateLimitDelay <= 0 {
		o.RateLimitDelay = 2 * time.Second
	}
	if o.RegenerateDelay <= 0 {
		o.RegenerateDelay = 500 * time.Millisecond
	}
	if o.Sleep == nil {
		o.Sleep = llm.SleepContext
	}
	if o.GenerateRetry == nil {
		p := llm.SingleAttempt()
		o.GenerateRetry = &p
	}
	if o.RegenerateRetry == nil {
		p := llm.DefaultRetryPolicy()
		o.RegenerateRetry = &p
	}
	o.GenerateRetry = o.withSleep(*o.GenerateRetry)
	o.RegenerateRetry = o.withSleep(*o.RegenerateRetry)
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Buffer <= 0 {
		o.Buffer = 32
	}
	return o
}

func (o Options) withSleep(p llm.RetryPolicy) *llm.RetryPolicy {
	if p.Sleep == nil {
		p.Sleep = o.Sleep
	}
	return &p
}

// Orchestrator drives the sequential document pipeline. It never touches a
// transport: callers drain the returned channel.
type Orchestrator struct {
	gen  Generator
	opts Options
}

func NewOrchestrator(gen Generator, opts Options) *Orchestrator {
	return &Orchestrator{gen: gen, opts: opts.withDefaults()}
}

// Brief is the project description shared by both request kinds.
type Brief struct {
	Credential llmclient.Credential
	Idea       string
	AppType    documents.AppType
	Template   string
	Language   documents.Language
}

func (b Brief) validate() error {
	switch {
	case strings.TrimSpace(b.Credential.APIKey) == "":
		return llmclient.Malformed("apiKey is required")
	case strings.TrimSpace(b.Idea) == "":
		return llmclient.Malformed("idea is required")
	case strings.TrimSpace(string(b.AppType)) == "":
		return llmclient.Malformed("appType is required")
	}
	if _, ok := llmclient.Lookup(b.Credential.Provider); !ok {
		return llmclient.Malformed("unsupported provider: %s", b.Credential.Provider)
	}
	return nil
}

func (b Brief) prompt() string {
	return documents.BaseContext(documents.Context{
		Idea:     b.Idea,
		AppType:  b.AppType,
		Template: b.Template,
		Language: b.Language,
	})
}

// GenerateRequest starts (or resumes) a full run.
type GenerateRequest struct {
	Brief
	// Skip lists documents completed by an earlier run.
	Skip []documents.Key
	// Existing carries content known for skipped documents. A key with
	// content here is skipped even when absent from Skip.
	Existing map[documents.Key]string
}

func (r GenerateRequest) seeded() map[documents.Key]string {
	out := map[documents.Key]string{}
	for _, k := range r.Skip {
		if k.Valid() {
			out[k] = r.Existing[k]
		}
	}
	for k, v := range r.Existing {
		if k.Valid() && strings.TrimSpace(v) != "" {
			out[k] = v
		}
	}
	return out
}

// emitter sends events to the consumer until ctx is done.
type emitter struct {
	ctx context.Context
	ch  chan<- Event
}

func (e emitter) emit(ev Event) bool {
	select {
	case <-e.ctx.Done():
		return false
	case e.ch <- ev:
		return true
	}
}

// Generate validates req and streams the run. Validation failures return
// before any channel exists. The channel is closed after complete, or
// early when ctx is canceled; complete is sent at most once.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (<-chan Event, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ch := make(chan Event, o.opts.Buffer)
	go func() {
		defer close(ch)
		o.runGenerate(ctx, req, emitter{ctx: ctx, ch: ch})
	}()
	return ch, nil
}

func (o *Orchestrator) runGenerate(ctx context.Context, req GenerateRequest, em emitter) {
	run := NewRun(documents.Keys(), req.seeded())
	prompt := req.prompt()
	logger := o.opts.Logger
	logger.Printf("[stream] run started: %s/%s, %d documents, %d skipped", req.Credential.Provider, req.Credential.Model, run.TotalSteps, run.Skipped())

	if !em.emit(Event{Type: EventStart, TotalSteps: run.TotalSteps}) {
		return
	}
	pending := run.Pending()
	for i, job := range pending {
		result, ok := o.runDocument(ctx, em, run, job.Key, prompt, req.Credential, *o.opts.GenerateRetry)
		if !ok {
			logger.Printf("[stream] run canceled at %s", job.Key)
			return
		}
		if i == len(pending)-1 {
			break
		}
		delay := o.opts.DocumentDelay
		if result.rateLimited {
			delay = o.opts.RateLimitDelay
		}
		if err := o.opts.Sleep(ctx, delay); err != nil {
			logger.Printf("[stream] run canceled after %s", job.Key)
			return
		}
	}

	state := run.Finish()
	docs := run.Documents()
	todos := todo.Extract(docs[documents.TodoMaster])
	logger.Printf("[stream] run finished: %s, failed=%v", state, run.Failed())
	em.emit(Event{Type: EventComplete, Documents: docs, Todos: todos, Failed: run.Failed()})
}

type docResult struct {
	ok          bool
	rateLimited bool
}

// runDocument performs one document under policy and emits its progress,
// retry and terminal events. The second return is false when the consumer
// went away.
func (o *Orchestrator) runDocument(ctx context.Context, em emitter, run *Run, key documents.Key, prompt string, cred llmclient.Credential, policy llm.RetryPolicy) (docResult, bool) {
	step, err := run.Begin(key)
	if err != nil {
		o.opts.Logger.Printf("[stream] %v", err)
		return docResult{}, true
	}
	total := run.TotalSteps
	if !em.emit(Event{Type: EventProgress, DocumentKey: key, Step: step, TotalSteps: total}) {
		return docResult{}, false
	}

	budget := policy.Attempts()
	var content string
	var lastErr *llmclient.Error
	canceled := false
	dctx := llm.WithDocument(ctx, string(key))
	retries, genErr := policy.Do(dctx, func(actx context.Context, attempt int) error {
		text, err := o.gen.Generate(actx, cred, prompt, documents.SystemPrompt(key), 0)
		if err != nil {
			lastErr = llmclient.Classify(err)
			o.opts.Logger.Printf("[stream] %s attempt %d/%d failed: %v", key, attempt, budget, lastErr)
			return lastErr
		}
		content = text
		return nil
	}, func(attempt int, err error) {
		ce := llmclient.Classify(err)
		if !em.emit(Event{
			Type:        EventProgress,
			DocumentKey: key,
			Step:        step,
			TotalSteps:  total,
			RetryCount:  intPtr(attempt),
			MaxRetries:  budget,
			Error:       fmt.Sprintf("retry %d/%d: %s", attempt, budget, ce.Message),
			ErrorKind:   ce.Kind,
			Status:      ce.Status,
		}) {
			canceled = true
		}
	})
	if canceled {
		return docResult{}, false
	}

	if genErr == nil {
		if err := run.Complete(key, content, retries); err != nil {
			o.opts.Logger.Printf("[stream] %v", err)
		}
		ev := Event{Type: EventDocument, DocumentKey: key, Content: content, Step: step, TotalSteps: total}
		if budget > 1 {
			ev.RetryCount = intPtr(retries)
		}
		return docResult{ok: true}, em.emit(ev)
	}

	if lastErr == nil {
		lastErr = llmclient.Classify(genErr)
	}
	fallback := documents.FallbackContent(key, lastErr.Message)
	if err := run.Fail(key, lastErr.Message, fallback, retries); err != nil {
		o.opts.Logger.Printf("[stream] %v", err)
	}
	ev := Event{
		Type:        EventError,
		DocumentKey: key,
		Error:       lastErr.Message,
		ErrorKind:   lastErr.Kind,
		Status:      lastErr.Status,
		Content:     fallback,
		Step:        step,
		TotalSteps:  total,
	}
	if budget > 1 {
		ev.RetryCount = intPtr(retries)
		ev.MaxRetries = budget
	}
	return docResult{rateLimited: lastErr.Kind == llmclient.KindRateLimited}, em.emit(ev)
}
