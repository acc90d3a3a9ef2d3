package llm

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmclient "vibedocs/internal/llm/client"
)

func TestAdapter_GenerateClassifiesErrors(t *testing.T) {
	ff := &FakeFactory{New: func(cred Credential) *FakeClient {
		return &FakeClient{Model: cred.Model, Respond: func(ctx context.Context, req Request) (string, error) {
			return "", errors.New("API_KEY_INVALID")
		}}
	}}
	a := NewAdapter(ff.Factory())
	_, err := a.Generate(context.Background(), Credential{Provider: llmclient.ProviderGoogle, APIKey: "k"}, "p", "", 0)

	var ce *llmclient.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, llmclient.KindInvalidCredential, ce.Kind)
	assert.Equal(t, 401, ce.Status)
}

func TestAdapter_DefaultsModelAndPassesPrompts(t *testing.T) {
	client := &FakeClient{Respond: func(ctx context.Context, req Request) (string, error) {
		return "# doc", nil
	}}
	ff := &FakeFactory{New: func(cred Credential) *FakeClient { client.Model = cred.Model; return client }}
	a := NewAdapter(ff.Factory())

	text, usage, err := a.GenerateWithUsage(context.Background(), Credential{Provider: llmclient.ProviderAnthropic, APIKey: "k"}, "user", "system", 100)
	require.NoError(t, err)
	assert.Equal(t, "# doc", text)
	assert.Equal(t, 1, usage.InputTokens)
	assert.Equal(t, "claude-sonnet-4-20250514", ff.Credentials()[0].Model)
	assert.Equal(t, Request{Prompt: "user", SystemPrompt: "system", MaxTokens: 100}, client.Calls()[0])
}

func TestAdapter_EmptyTextIsAnError(t *testing.T) {
	ff := &FakeFactory{New: func(cred Credential) *FakeClient {
		return &FakeClient{Respond: func(ctx context.Context, req Request) (string, error) { return "  ", nil }}
	}}
	_, err := NewAdapter(ff.Factory()).Generate(context.Background(), Credential{Provider: llmclient.ProviderOpenAI, APIKey: "k"}, "p", "", 0)
	assert.Equal(t, llmclient.KindUnknown, llmclient.KindOf(err))
}

func TestAdapter_MissingKeyIsMalformed(t *testing.T) {
	ff := &FakeFactory{}
	_, err := NewAdapter(ff.Factory()).Probe(context.Background(), Credential{Provider: llmclient.ProviderGoogle}, `Say "OK"`)
	assert.Equal(t, llmclient.KindMalformedRequest, llmclient.KindOf(err))
	assert.Empty(t, ff.Credentials(), "no client should be built without a key")
}

func TestAdapter_ProbeReportsModel(t *testing.T) {
	ff := &FakeFactory{}
	res, err := NewAdapter(ff.Factory()).Probe(context.Background(), Credential{Provider: llmclient.ProviderOpenAI, APIKey: "k", Model: "gpt-4o-mini"}, `Say "OK"`)
	require.NoError(t, err)
	assert.Equal(t, ProbeResult{OK: true, ModelUsed: "gpt-4o-mini"}, res)
}

func TestTimeout_ClassifiesDeadline(t *testing.T) {
	slow := &FakeClient{Respond: func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	cli := Wrap(slow, Timeout(20*time.Millisecond))
	_, err := cli.Generate(context.Background(), Request{Prompt: "p"})
	assert.Equal(t, llmclient.KindTimeout, llmclient.KindOf(err))
}

func TestDetached_IgnoresCallerCancel(t *testing.T) {
	started := make(chan struct{})
	client := &FakeClient{Respond: func(ctx context.Context, req Request) (string, error) {
		close(started)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return "finished", nil
		}
	}}
	cli := Wrap(client, Detached(), Timeout(time.Second))

	ctx, cancel := context.WithCancel(WithDocument(context.Background(), "prd"))
	go func() {
		<-started
		cancel()
	}()
	resp, err := cli.Generate(ctx, Request{Prompt: "p"})
	require.NoError(t, err)
	text, _ := llmclient.ExtractText(resp)
	assert.Equal(t, "finished", text)
}

func TestWithLogging_NeverLogsKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	ff := &FakeFactory{}
	a := NewAdapter(ff.Factory(), WithLogging(logger))
	_, err := a.Generate(WithDocument(context.Background(), "ideaBrief"), Credential{Provider: llmclient.ProviderGoogle, APIKey: "AIzaSECRETSECRETSECRET"}, "p", "", 0)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ideaBrief")
	assert.False(t, strings.Contains(buf.String(), "SECRET"))
}
