package validation

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibedocs/internal/llm"
	llmclient "vibedocs/internal/llm/client"
)

type fakeProber struct {
	mu      sync.Mutex
	results map[string]error
	models  []string
}

func (f *fakeProber) Probe(ctx context.Context, cred llmclient.Credential, prompt string) (llm.ProbeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, cred.Model)
	if err := f.results[cred.Model]; err != nil {
		return llm.ProbeResult{}, err
	}
	return llm.ProbeResult{OK: true, ModelUsed: cred.Model}, nil
}

type waits struct{ d []time.Duration }

func (w *waits) sleep(ctx context.Context, d time.Duration) error {
	w.d = append(w.d, d)
	return nil
}

const googleKey = "AIzaSyA-test-0123456789abcdef"

func newService(p Prober, w *waits) *Service {
	return New(p, Options{Sleep: w.sleep, Logger: log.New(io.Discard, "", 0)})
}

func TestValidate_FormatCheckSkipsNetwork(t *testing.T) {
	p := &fakeProber{}
	_, err := newService(p, &waits{}).Validate(context.Background(), llmclient.ProviderOpenAI, "not-a-key", "")

	var fe *llmclient.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "https://platform.openai.com/api-keys", fe.Hint)
	assert.Empty(t, p.models)
}

func TestValidate_MissingKeyIsMalformed(t *testing.T) {
	_, err := newService(&fakeProber{}, &waits{}).Validate(context.Background(), llmclient.ProviderGoogle, " ", "")
	assert.Equal(t, llmclient.KindMalformedRequest, llmclient.KindOf(err))
}

func TestValidate_FallsThroughCandidates(t *testing.T) {
	p := &fakeProber{results: map[string]error{
		"gemini-2.5-flash": errors.New("models/gemini-2.5-flash is not found"),
	}}
	w := &waits{}
	r, err := newService(p, w).Validate(context.Background(), llmclient.ProviderGoogle, googleKey, "")
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.Equal(t, "gemini-1.5-flash", r.Model)
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-1.5-flash"}, p.models)
	assert.Equal(t, []time.Duration{300 * time.Millisecond}, w.d)
}

func TestValidate_RateLimitProvesValidity(t *testing.T) {
	p := &fakeProber{results: map[string]error{"gemini-2.5-flash": errors.New("429 RESOURCE_EXHAUSTED quota")}}
	s := newService(p, &waits{})
	r, err := s.Validate(context.Background(), llmclient.ProviderGoogle, googleKey, "")
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.True(t, r.RateLimited)
	assert.NotEmpty(t, r.Warning)

	_, err = s.Validate(context.Background(), llmclient.ProviderGoogle, googleKey, "")
	require.NoError(t, err)
	assert.Len(t, p.models, 2, "rate-limited verdicts are not cached")
}

func TestValidate_InvalidKeyShortCircuits(t *testing.T) {
	p := &fakeProber{results: map[string]error{"gemini-2.5-flash": errors.New("API key not valid. API_KEY_INVALID")}}
	w := &waits{}
	r, err := newService(p, w).Validate(context.Background(), llmclient.ProviderGoogle, googleKey, "")
	require.NoError(t, err)
	assert.False(t, r.Valid)
	assert.Equal(t, "https://aistudio.google.com/apikey", r.Hint)
	assert.Len(t, p.models, 1)
	assert.Empty(t, w.d)
}

func TestValidate_AllCandidatesExhausted(t *testing.T) {
	p := &fakeProber{results: map[string]error{
		"claude-3-5-haiku-20241022": errors.New("overloaded"),
		"claude-sonnet-4-20250514":  errors.New("overloaded again"),
	}}
	r, err := newService(p, &waits{}).Validate(context.Background(), llmclient.ProviderAnthropic, "sk-ant-REDACTED", "")
	require.NoError(t, err)
	assert.False(t, r.Valid)
	assert.Equal(t, "overloaded again", r.Error)
	assert.Equal(t, "https://console.anthropic.com/settings/keys", r.Hint)
}

func TestValidate_ExplicitModelOnly(t *testing.T) {
	p := &fakeProber{}
	r, err := newService(p, &waits{}).Validate(context.Background(), llmclient.ProviderOpenAI, "sk-proj-0123456789abcdefgh", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", r.Model)
	assert.Equal(t, []string{"gpt-4o"}, p.models)
}

func TestValidate_CachesSuccess(t *testing.T) {
	p := &fakeProber{}
	s := newService(p, &waits{})
	for i := 0; i < 3; i++ {
		r, err := s.Validate(context.Background(), llmclient.ProviderGoogle, googleKey, "")
		require.NoError(t, err)
		assert.True(t, r.Valid)
	}
	assert.Len(t, p.models, 1)
}
