package pipeline

import (
	"context"
	"fmt"
	"strings"

	"vibedocs/internal/documents"
	llmclient "vibedocs/internal/llm/client"
)

// RegenerateRequest reruns only the named documents.
type RegenerateRequest struct {
	Brief
	Keys     []string
	Existing map[documents.Key]string
}

func (r RegenerateRequest) keys() []documents.Key {
	seen := map[string]bool{}
	var out []documents.Key
	for _, raw := range r.Keys {
		k := strings.TrimSpace(raw)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, documents.Key(k))
	}
	return out
}

// Regenerate streams a targeted rerun with the regeneration retry policy.
// Unknown keys surface as per-document errors. The complete event carries
// the existing documents overlaid with every successful rerun; no todos.
func (o *Orchestrator) Regenerate(ctx context.Context, req RegenerateRequest) (<-chan Event, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	keys := req.keys()
	if len(keys) == 0 {
		return nil, llmclient.Malformed("documentKeys is required")
	}
	ch := make(chan Event, o.opts.Buffer)
	go func() {
		defer close(ch)
		o.runRegenerate(ctx, req, keys, emitter{ctx: ctx, ch: ch})
	}()
	return ch, nil
}

func (o *Orchestrator) runRegenerate(ctx context.Context, req RegenerateRequest, keys []documents.Key, em emitter) {
	run := NewRun(keys, nil)
	prompt := req.prompt()
	logger := o.opts.Logger
	logger.Printf("[regenerate] run started: %s/%s, keys=%v", req.Credential.Provider, req.Credential.Model, keys)

	if !em.emit(Event{Type: EventStart, TotalSteps: run.TotalSteps}) {
		return
	}
	for i, k := range keys {
		if !k.Valid() {
			if !o.rejectUnknown(em, run, k) {
				return
			}
			continue
		}
		if _, ok := o.runDocument(ctx, em, run, k, prompt, req.Credential, *o.opts.RegenerateRetry); !ok {
			logger.Printf("[regenerate] run canceled at %s", k)
			return
		}
		if i == len(keys)-1 {
			break
		}
		if err := o.opts.Sleep(ctx, o.opts.RegenerateDelay); err != nil {
			logger.Printf("[regenerate] run canceled after %s", k)
			return
		}
	}

	run.Finish()
	docs := make(map[documents.Key]string, len(req.Existing)+len(keys))
	for k, v := range req.Existing {
		if k.Valid() {
			docs[k] = v
		}
	}
	for _, job := range run.Jobs {
		if !job.Key.Valid() {
			continue
		}
		switch {
		case job.Status == JobCompleted:
			docs[job.Key] = job.Content
		case strings.TrimSpace(docs[job.Key]) == "":
			docs[job.Key] = job.Content
		}
	}
	logger.Printf("[regenerate] run finished: failed=%v", run.Failed())
	em.emit(Event{Type: EventComplete, Documents: docs, Failed: run.Failed()})
}

func (o *Orchestrator) rejectUnknown(em emitter, run *Run, k documents.Key) bool {
	step, err := run.Begin(k)
	if err != nil {
		o.opts.Logger.Printf("[regenerate] %v", err)
		return true
	}
	msg := fmt.Sprintf("unknown document key: %s", k)
	if err := run.Fail(k, msg, "", 0); err != nil {
		o.opts.Logger.Printf("[regenerate] %v", err)
	}
	o.opts.Logger.Printf("[regenerate] %s", msg)
	if !em.emit(Event{Type: EventProgress, DocumentKey: k, Step: step, TotalSteps: run.TotalSteps}) {
		return false
	}
	return em.emit(Event{
		Type:        EventError,
		DocumentKey: k,
		Error:       msg,
		ErrorKind:   llmclient.KindMalformedRequest,
		Status:      400,
		Step:        step,
		TotalSteps:  run.TotalSteps,
	})
}
