package llmclient

import (
	"context"
	"net/http"
	"strings"
)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes how a provider client reaches its API.
type Option func(*clientOptions)

// WithBaseURL points the client at a different endpoint (proxies, tests).
func WithBaseURL(u string) Option {
	return func(o *clientOptions) { o.baseURL = strings.TrimSpace(u) }
}

// WithHTTPClient replaces the transport used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// Factory builds a client for one credential. The gateway creates a fresh
// client per request because credentials arrive with each request.
type Factory func(ctx context.Context, cred Credential) (LLMClient, error)

// NewClient builds the concrete client for cred.Provider. An empty model
// selects the provider default.
func NewClient(ctx context.Context, cred Credential, opts ...Option) (LLMClient, error) {
	var o clientOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if strings.TrimSpace(cred.APIKey) == "" {
		return nil, Malformed("API key is required")
	}
	model := strings.TrimSpace(cred.Model)
	if model == "" {
		model = DefaultModel(cred.Provider)
	}
	switch cred.Provider {
	case ProviderGoogle:
		return NewGeminiClient(ctx, cred.APIKey, model, o)
	case ProviderOpenAI:
		return NewOpenAIClient(cred.APIKey, model, o), nil
	case ProviderAnthropic:
		return NewAnthropicClient(cred.APIKey, model, o), nil
	}
	return nil, Malformed("unsupported provider: %s", cred.Provider)
}

// NewFactory returns a Factory that passes opts to every client.
func NewFactory(opts ...Option) Factory {
	return func(ctx context.Context, cred Credential) (LLMClient, error) {
		return NewClient(ctx, cred, opts...)
	}
}
