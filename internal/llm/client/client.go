package llmclient

import (
	"context"
	"fmt"
	"strings"
)

// Provider identifies an LLM vendor.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Providers returns every supported provider in display order.
func Providers() []Provider {
	return []Provider{ProviderGoogle, ProviderOpenAI, ProviderAnthropic}
}

// ParseProvider normalizes a provider tag. An empty tag maps to google.
func ParseProvider(raw string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return ProviderGoogle, nil
	}
	switch p {
	case ProviderGoogle, ProviderOpenAI, ProviderAnthropic:
		return p, nil
	}
	return "", &Error{Kind: KindMalformedRequest, Status: 400, Message: fmt.Sprintf("unsupported provider: %s", raw)}
}

// Credential is the caller-supplied key and model for one provider.
// It is never persisted by the gateway.
type Credential struct {
	Provider Provider
	APIKey   string
	Model    string
}

// Request is a single synchronous text generation.
// MaxTokens <= 0 selects the provider default.
type Request struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
}

// DefaultMaxTokens is applied by providers that require an explicit output ceiling.
const DefaultMaxTokens = 4096

// Usage reports token counters as returned by the provider.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// LLMClient defines the interface for LLM providers.
type LLMClient interface {
	Name() string
	Provider() Provider
	Close() error
	Generate(ctx context.Context, req Request) (Response, error)
}
