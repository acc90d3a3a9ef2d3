package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibedocs/internal/documents"
	"vibedocs/internal/llm"
	llmclient "vibedocs/internal/llm/client"
	"vibedocs/internal/todo"
)

func TestGenerate_AllSucceed(t *testing.T) {
	gen := &scriptGen{}
	s := &sleeps{}
	ch, err := newTestOrchestrator(gen, s).Generate(context.Background(), GenerateRequest{Brief: brief()})
	require.NoError(t, err)
	evs := drain(t, ch)

	require.Len(t, evs, 1+2*documents.Count+1)
	assert.Equal(t, Event{Type: EventStart, TotalSteps: 10}, evs[0])
	for i, k := range documents.Keys() {
		p, d := evs[1+2*i], evs[2+2*i]
		assert.Equal(t, EventProgress, p.Type)
		assert.Equal(t, k, p.DocumentKey)
		assert.Equal(t, i+1, p.Step)
		assert.Equal(t, 10, p.TotalSteps)
		assert.Equal(t, EventDocument, d.Type)
		assert.Equal(t, k, d.DocumentKey)
		assert.Nil(t, d.RetryCount)
	}
	last := evs[len(evs)-1]
	assert.Equal(t, EventComplete, last.Type)
	assert.Len(t, last.Documents, 10)
	assert.Empty(t, last.Failed)
	require.Len(t, last.Todos, 1)
	assert.Equal(t, "Ship it", last.Todos[0].Title)

	assert.Equal(t, documents.Keys(), gen.Calls())
	waits := s.all()
	require.Len(t, waits, 9, "no delay after the last document")
	for _, w := range waits {
		assert.Equal(t, 300*time.Millisecond, w)
	}
}

func TestGenerate_FailureDoesNotAbortRun(t *testing.T) {
	gen := &scriptGen{fail: map[documents.Key][]error{
		documents.IdeaBrief: {errInvalidKey},
		documents.TechStack: {errors.New("429 quota exceeded")},
	}}
	s := &sleeps{}
	ch, err := newTestOrchestrator(gen, s).Generate(context.Background(), GenerateRequest{Brief: brief()})
	require.NoError(t, err)
	evs := drain(t, ch)

	errs := ofType(evs, EventError)
	require.Len(t, errs, 2)
	assert.Equal(t, documents.IdeaBrief, errs[0].DocumentKey)
	assert.Equal(t, llmclient.KindInvalidCredential, errs[0].ErrorKind)
	assert.Equal(t, 401, errs[0].Status)
	assert.Equal(t, documents.FallbackContent(documents.IdeaBrief, errs[0].Error), errs[0].Content)
	assert.Equal(t, llmclient.KindRateLimited, errs[1].ErrorKind)

	assert.Len(t, ofType(evs, EventDocument), 8)
	assert.Len(t, gen.Calls(), 10, "every document is attempted")

	complete := evs[len(evs)-1]
	assert.Equal(t, []documents.Key{documents.IdeaBrief, documents.TechStack}, complete.Failed)
	assert.Equal(t, errs[0].Content, complete.Documents[documents.IdeaBrief])

	waits := s.all()
	assert.Equal(t, 2*time.Second, waits[4], "rate-limited failure lengthens the next gap")
	assert.Equal(t, 300*time.Millisecond, waits[0])
}

func TestGenerate_TodoMasterFailureUsesDefaultSkeleton(t *testing.T) {
	gen := &scriptGen{fail: map[documents.Key][]error{documents.TodoMaster: {errors.New("boom")}}}
	ch, err := newTestOrchestrator(gen, &sleeps{}).Generate(context.Background(), GenerateRequest{Brief: brief()})
	require.NoError(t, err)
	evs := drain(t, ch)
	assert.Equal(t, todo.Default(), evs[len(evs)-1].Todos)
}

func TestGenerate_ResumeSkipsCompleted(t *testing.T) {
	gen := &scriptGen{}
	req := GenerateRequest{
		Brief:    brief(),
		Skip:     []documents.Key{documents.IdeaBrief, documents.UserStories},
		Existing: map[documents.Key]string{documents.ScreenFlow: "# kept flow"},
	}
	ch, err := newTestOrchestrator(gen, &sleeps{}).Generate(context.Background(), req)
	require.NoError(t, err)
	evs := drain(t, ch)

	assert.Equal(t, 7, evs[0].TotalSteps)
	progress := ofType(evs, EventProgress)
	require.Len(t, progress, 7)
	assert.Equal(t, documents.PRD, progress[0].DocumentKey)
	assert.Equal(t, 4, progress[0].Step)
	assert.Equal(t, 10, progress[6].Step)
	assert.Equal(t, 7, progress[6].TotalSteps)
	assert.NotContains(t, gen.Calls(), documents.IdeaBrief)

	complete := evs[len(evs)-1]
	assert.Len(t, complete.Documents, 10)
	assert.Equal(t, "", complete.Documents[documents.IdeaBrief])
	assert.Equal(t, "# kept flow", complete.Documents[documents.ScreenFlow])
}

func TestGenerate_RejectsMalformedBeforeStreaming(t *testing.T) {
	o := newTestOrchestrator(&scriptGen{}, &sleeps{})
	for _, mutate := range []func(*Brief){
		func(b *Brief) { b.Credential.APIKey = "" },
		func(b *Brief) { b.Idea = "  " },
		func(b *Brief) { b.AppType = "" },
		func(b *Brief) { b.Credential.Provider = "mistral" },
	} {
		b := brief()
		mutate(&b)
		ch, err := o.Generate(context.Background(), GenerateRequest{Brief: b})
		assert.Nil(t, ch)
		assert.Equal(t, llmclient.KindMalformedRequest, llmclient.KindOf(err))
	}
}

func TestGenerate_CancelStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &scriptGen{}
	gen.before = func(k documents.Key) {
		if k == documents.ScreenFlow {
			cancel()
		}
	}
	ch, err := newTestOrchestrator(gen, &sleeps{}).Generate(ctx, GenerateRequest{Brief: brief()})
	require.NoError(t, err)
	evs := drain(t, ch)

	assert.Empty(t, ofType(evs, EventComplete))
	assert.LessOrEqual(t, len(gen.Calls()), 3)
}

func TestGenerate_StepsAreMonotonic(t *testing.T) {
	gen := &scriptGen{fail: map[documents.Key][]error{documents.PRD: {errors.New("x")}}}
	ch, err := newTestOrchestrator(gen, &sleeps{}).Generate(context.Background(), GenerateRequest{Brief: brief()})
	require.NoError(t, err)
	prev := 0
	for _, ev := range drain(t, ch) {
		if ev.Type == EventProgress {
			assert.Greater(t, ev.Step, prev)
			prev = ev.Step
		}
		if ev.Terminal() {
			assert.Equal(t, prev, ev.Step, "terminal event follows its own progress event")
		}
	}
}

func TestRunDocument_LogsRejectedSettle(t *testing.T) {
	var buf bytes.Buffer
	run := NewRun([]documents.Key{documents.IdeaBrief}, nil)
	gen := &scriptGen{before: func(k documents.Key) {
		_ = run.Fail(k, "settled elsewhere", "", 0)
	}}
	o := NewOrchestrator(gen, Options{Sleep: (&sleeps{}).sleep, Logger: log.New(&buf, "", 0)})

	ctx := context.Background()
	ch := make(chan Event, 4)
	res, ok := o.runDocument(ctx, emitter{ctx: ctx, ch: ch}, run, documents.IdeaBrief, "prompt", brief().Credential, llm.SingleAttempt())
	require.True(t, ok)
	assert.True(t, res.ok)
	assert.Contains(t, buf.String(), "not generating")
	assert.Equal(t, JobError, run.Jobs[0].Status, "the first settle wins")
}
