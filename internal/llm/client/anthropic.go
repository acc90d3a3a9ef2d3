package llmclient

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient calls the Messages API through the official SDK.
type AnthropicClient struct {
	cli   anthropic.Client
	model string
}

func NewAnthropicClient(apiKey, model string, o clientOptions) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(o.httpClient))
	}
	return &AnthropicClient{cli: anthropic.NewClient(opts...), model: model}
}

func (c *AnthropicClient) Name() string       { return "Anthropic:" + c.model }
func (c *AnthropicClient) Provider() Provider { return ProviderAnthropic }
func (c *AnthropicClient) Close() error       { return nil }

func (c *AnthropicClient) Generate(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}
	resp, err := c.cli.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}
	return AnthropicResponse{Raw: resp}, nil
}
