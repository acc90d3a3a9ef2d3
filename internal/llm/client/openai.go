package llmclient

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient calls the Chat Completions API through the official SDK.
// SDK retries are disabled; retrying is the pipeline's decision.
type OpenAIClient struct {
	cli   openai.Client
	model string
}

func NewOpenAIClient(apiKey, model string, o clientOptions) *OpenAIClient {
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
	return &OpenAIClient{cli: openai.NewClient(opts...), model: model}
}

func (c *OpenAIClient) Name() string       { return "OpenAI:" + c.model }
func (c *OpenAIClient) Provider() Provider { return ProviderOpenAI }
func (c *OpenAIClient) Close() error       { return nil }

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		msgs = append(msgs, openai.SystemMessage(sys))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	resp, err := c.cli.Chat.Completions.New(ctx, chatParams(c.model, msgs, maxTokens))
	if err != nil {
		return nil, err
	}
	return OpenAIResponse{Raw: resp}, nil
}

// chatParams builds the request body. Reasoning models reject max_tokens and
// take max_completion_tokens instead.
func chatParams(model string, msgs []openai.ChatCompletionMessageParamUnion, maxTokens int) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if reasoningModel(model) {
		p.MaxCompletionTokens = openai.Int(int64(maxTokens))
	} else {
		p.MaxTokens = openai.Int(int64(maxTokens))
	}
	return p
}

func reasoningModel(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}
