package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"vibedocs/internal/documents"
	llmclient "vibedocs/internal/llm/client"
)

// scriptGen fails a document for as many attempts as it has queued errors,
// then succeeds with "# <key>".
type scriptGen struct {
	mu     sync.Mutex
	fail   map[documents.Key][]error
	calls  []documents.Key
	before func(k documents.Key)
}

func (g *scriptGen) Generate(ctx context.Context, cred llmclient.Credential, prompt, systemPrompt string, maxTokens int) (string, error) {
	key := keyForPrompt(systemPrompt)
	if g.before != nil {
		g.before(key)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, key)
	if errs := g.fail[key]; len(errs) > 0 {
		g.fail[key] = errs[1:]
		return "", errs[0]
	}
	if key == documents.TodoMaster {
		return "## Phase 1: Build\n- [ ] Ship it (3h)\n", nil
	}
	return "# " + string(key), nil
}

func (g *scriptGen) Calls() []documents.Key {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]documents.Key(nil), g.calls...)
}

func keyForPrompt(system string) documents.Key {
	for _, k := range documents.Keys() {
		if documents.SystemPrompt(k) == system {
			return k
		}
	}
	return ""
}

type sleeps struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleeps) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func newTestOrchestrator(gen Generator, s *sleeps) *Orchestrator {
	return NewOrchestrator(gen, Options{Sleep: s.sleep, Logger: log.New(io.Discard, "", 0)})
}

func brief() Brief {
	return Brief{
		Credential: llmclient.Credential{Provider: llmclient.ProviderGoogle, APIKey: "AIza-test-key-0000000000", Model: "gemini-2.5-flash"},
		Idea:       "A habit tracker",
		AppType:    documents.AppTypeWeb,
	}
}

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("stream did not close; got %d events", len(out))
		}
	}
}

func ofType(evs []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

var errInvalidKey = errors.New("API_KEY_INVALID")
