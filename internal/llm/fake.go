package llm

import (
	"context"
	"sync"

	llmclient "vibedocs/internal/llm/client"
)

// FakeClient answers from a script for offline runs and tests.
type FakeClient struct {
	Model   string
	Vendor  llmclient.Provider
	Respond func(ctx context.Context, req Request) (string, error)

	mu    sync.Mutex
	calls []Request
}

func (f *FakeClient) Name() string { return "Fake:" + f.Model }
func (f *FakeClient) Provider() llmclient.Provider {
	if f.Vendor == "" {
		return llmclient.ProviderGoogle
	}
	return f.Vendor
}
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Generate(ctx context.Context, req Request) (Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.Respond == nil {
		return llmclient.TextResponse{Text: "OK"}, nil
	}
	text, err := f.Respond(ctx, req)
	if err != nil {
		return nil, err
	}
	return llmclient.TextResponse{Text: text, Usage: llmclient.Usage{InputTokens: len(req.Prompt) / 4, OutputTokens: len(text) / 4}}, nil
}

// Calls returns a copy of every request received so far.
func (f *FakeClient) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}

// FakeFactory hands out fn's client for every credential and records the
// credentials it was asked for.
type FakeFactory struct {
	New func(cred Credential) *FakeClient

	mu    sync.Mutex
	creds []Credential
}

func (f *FakeFactory) Factory() llmclient.Factory {
	return func(ctx context.Context, cred Credential) (LLMClient, error) {
		f.mu.Lock()
		f.creds = append(f.creds, cred)
		f.mu.Unlock()
		if f.New == nil {
			return &FakeClient{Model: cred.Model, Vendor: cred.Provider}, nil
		}
		return f.New(cred), nil
	}
}

// Credentials returns the credentials seen so far, in order.
func (f *FakeFactory) Credentials() []Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Credential(nil), f.creds...)
}
