package llm

import (
	"context"
	"fmt"
	"strings"

	llmclient "vibedocs/internal/llm/client"
)

// Adapter turns a credential plus prompt into text. It builds a client for
// each call through the factory and decorates it with the configured
// middlewares. Every error it returns is a *llmclient.Error.
type Adapter struct {
	factory llmclient.Factory
	mws     []Middleware
}

func NewAdapter(factory llmclient.Factory, mws ...Middleware) *Adapter {
	if factory == nil {
		factory = llmclient.NewFactory()
	}
	return &Adapter{factory: factory, mws: mws}
}

// ProbeResult reports a successful liveness call.
type ProbeResult struct {
	OK        bool
	ModelUsed string
}

func (a *Adapter) client(ctx context.Context, cred Credential) (LLMClient, error) {
	if a == nil {
		return nil, llmclient.Malformed("adapter is not configured")
	}
	if strings.TrimSpace(cred.APIKey) == "" {
		return nil, llmclient.Malformed("API key is required")
	}
	if strings.TrimSpace(cred.Model) == "" {
		cred.Model = llmclient.DefaultModel(cred.Provider)
	}
	cli, err := a.factory(ctx, cred)
	if err != nil {
		return nil, llmclient.Classify(fmt.Errorf("create %s client: %w", cred.Provider, err))
	}
	return Wrap(cli, a.mws...), nil
}

// Generate returns the generated text.
func (a *Adapter) Generate(ctx context.Context, cred Credential, prompt, systemPrompt string, maxTokens int) (string, error) {
	text, _, err := a.GenerateWithUsage(ctx, cred, prompt, systemPrompt, maxTokens)
	return text, err
}

// GenerateWithUsage returns the generated text and the provider's token counters.
func (a *Adapter) GenerateWithUsage(ctx context.Context, cred Credential, prompt, systemPrompt string, maxTokens int) (string, Usage, error) {
	cli, err := a.client(ctx, cred)
	if err != nil {
		return "", Usage{}, err
	}
	defer cli.Close()

	resp, err := cli.Generate(ctx, Request{Prompt: prompt, SystemPrompt: systemPrompt, MaxTokens: maxTokens})
	if err != nil {
		return "", Usage{}, llmclient.Classify(err)
	}
	text, err := llmclient.ExtractText(resp)
	if err != nil {
		return "", Usage{}, llmclient.Classify(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", Usage{}, llmclient.Classify(llmclient.ErrEmptyResponse)
	}
	return text, llmclient.ExtractUsage(resp), nil
}

// Probe sends a tiny prompt to confirm that the credential works for its model.
func (a *Adapter) Probe(ctx context.Context, cred Credential, testPrompt string) (ProbeResult, error) {
	if strings.TrimSpace(cred.Model) == "" {
		cred.Model = llmclient.DefaultModel(cred.Provider)
	}
	if _, err := a.Generate(ctx, cred, testPrompt, "", 16); err != nil {
		return ProbeResult{}, err
	}
	return ProbeResult{OK: true, ModelUsed: cred.Model}, nil
}
