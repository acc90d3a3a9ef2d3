package llmclient

import (
	"context"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
// It only focuses on the API call itself. Cross-cutting concerns
// (rate limiting, timeouts, logging) are applied via Middleware.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string, o clientOptions) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(apiKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string       { return "Gemini:" + g.model }
func (g *GeminiClient) Provider() Provider { return ProviderGoogle }
func (g *GeminiClient) Close() error       { return nil }

// Generate sends the prompt with the system prompt as a system instruction.
// No output ceiling is set; the model's own limit applies.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (Response, error) {
	var cfg *genai.GenerateContentConfig
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(sys, genai.RoleUser),
		}
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, err
	}
	return GoogleResponse{Raw: resp}, nil
}
