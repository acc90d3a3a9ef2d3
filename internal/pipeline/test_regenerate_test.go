package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibedocs/internal/documents"
	llmclient "vibedocs/internal/llm/client"
)

func TestRegenerate_SuccessOnSecondAttempt(t *testing.T) {
	gen := &scriptGen{fail: map[documents.Key][]error{documents.PRD: {errors.New("socket hang up")}}}
	s := &sleeps{}
	existing := map[documents.Key]string{documents.IdeaBrief: "# idea", documents.PRD: "# old prd"}
	ch, err := newTestOrchestrator(gen, s).Regenerate(context.Background(), RegenerateRequest{
		Brief: brief(), Keys: []string{"prd"}, Existing: existing,
	})
	require.NoError(t, err)
	evs := drain(t, ch)

	require.Len(t, evs, 5)
	assert.Equal(t, Event{Type: EventStart, TotalSteps: 1}, evs[0])
	assert.False(t, evs[1].IsRetry())
	require.True(t, evs[2].IsRetry())
	assert.Equal(t, 1, *evs[2].RetryCount)
	assert.Equal(t, 3, evs[2].MaxRetries)
	assert.Contains(t, evs[2].Error, "retry 1/3")

	doc := evs[3]
	assert.Equal(t, EventDocument, doc.Type)
	require.NotNil(t, doc.RetryCount)
	assert.Equal(t, 1, *doc.RetryCount)

	complete := evs[4]
	assert.Equal(t, "# prd", complete.Documents[documents.PRD])
	assert.Equal(t, "# idea", complete.Documents[documents.IdeaBrief])
	assert.Nil(t, complete.Todos)
	assert.Equal(t, []time.Duration{2 * time.Second}, s.all())
}

func TestRegenerate_ExhaustionIsTerminal(t *testing.T) {
	boom := errors.New("upstream 503")
	gen := &scriptGen{fail: map[documents.Key][]error{documents.APISpec: {boom, boom, boom}}}
	s := &sleeps{}
	ch, err := newTestOrchestrator(gen, s).Regenerate(context.Background(), RegenerateRequest{
		Brief:    brief(),
		Keys:     []string{"apiSpec", "dataModel"},
		Existing: map[documents.Key]string{documents.APISpec: "# previous api"},
	})
	require.NoError(t, err)
	evs := drain(t, ch)

	errs := ofType(evs, EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, 3, *errs[0].RetryCount)
	assert.Equal(t, 3, errs[0].MaxRetries)
	assert.Len(t, ofType(evs, EventDocument), 1, "sibling key still regenerates")

	complete := evs[len(evs)-1]
	assert.Equal(t, "# previous api", complete.Documents[documents.APISpec], "failed key keeps existing content")
	assert.Equal(t, []documents.Key{documents.APISpec}, complete.Failed)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 500 * time.Millisecond}, s.all())
}

func TestRegenerate_UnknownKeyIsPerDocumentError(t *testing.T) {
	gen := &scriptGen{}
	ch, err := newTestOrchestrator(gen, &sleeps{}).Regenerate(context.Background(), RegenerateRequest{
		Brief: brief(), Keys: []string{"bogus", "prd"},
	})
	require.NoError(t, err)
	evs := drain(t, ch)

	errs := ofType(evs, EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, documents.Key("bogus"), errs[0].DocumentKey)
	assert.Equal(t, llmclient.KindMalformedRequest, errs[0].ErrorKind)
	assert.Equal(t, []documents.Key{documents.PRD}, gen.Calls())
	assert.NotContains(t, evs[len(evs)-1].Documents, documents.Key("bogus"))
}

func TestRegenerate_RequiresKeys(t *testing.T) {
	_, err := newTestOrchestrator(&scriptGen{}, &sleeps{}).Regenerate(context.Background(), RegenerateRequest{Brief: brief(), Keys: []string{" "}})
	assert.Equal(t, llmclient.KindMalformedRequest, llmclient.KindOf(err))
}

func TestRegenerate_InvalidKeyStopsRetrying(t *testing.T) {
	gen := &scriptGen{fail: map[documents.Key][]error{documents.PRD: {errInvalidKey, errInvalidKey, errInvalidKey}}}
	ch, err := newTestOrchestrator(gen, &sleeps{}).Regenerate(context.Background(), RegenerateRequest{Brief: brief(), Keys: []string{"prd"}})
	require.NoError(t, err)
	evs := drain(t, ch)
	assert.Len(t, gen.Calls(), 1)
	assert.Equal(t, 401, ofType(evs, EventError)[0].Status)
}
