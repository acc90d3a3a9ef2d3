package llmclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	genai "google.golang.org/genai"
)

// Response is the raw result of a provider call. Exactly one of the
// concrete variants below implements it; use ExtractText and ExtractUsage
// instead of inspecting the payload directly.
type Response interface {
	isResponse()
}

type GoogleResponse struct {
	Raw *genai.GenerateContentResponse
}

type OpenAIResponse struct {
	Raw *openai.ChatCompletion
}

type AnthropicResponse struct {
	Raw *anthropic.Message
}

// TextResponse is a response already reduced to text. Scripted clients return it.
type TextResponse struct {
	Text  string
	Usage Usage
}

func (GoogleResponse) isResponse()    {}
func (OpenAIResponse) isResponse()    {}
func (AnthropicResponse) isResponse() {}
func (TextResponse) isResponse()      {}

var ErrEmptyResponse = errors.New("llm returned no content")

// ExtractText returns the generated text of a response.
func ExtractText(resp Response) (string, error) {
	switch r := resp.(type) {
	case GoogleResponse:
		if r.Raw == nil || len(r.Raw.Candidates) == 0 || r.Raw.Candidates[0].Content == nil {
			return "", ErrEmptyResponse
		}
		var sb strings.Builder
		for _, part := range r.Raw.Candidates[0].Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
		return sb.String(), nil
	case OpenAIResponse:
		if r.Raw == nil || len(r.Raw.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		return r.Raw.Choices[0].Message.Content, nil
	case AnthropicResponse:
		if r.Raw == nil {
			return "", ErrEmptyResponse
		}
		var sb strings.Builder
		for _, block := range r.Raw.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		return sb.String(), nil
	case TextResponse:
		return r.Text, nil
	case nil:
		return "", ErrEmptyResponse
	}
	return "", fmt.Errorf("unknown response type %T", resp)
}

// ExtractUsage returns the token counters of a response. Missing counters are zero.
func ExtractUsage(resp Response) Usage {
	switch r := resp.(type) {
	case GoogleResponse:
		if r.Raw == nil || r.Raw.UsageMetadata == nil {
			return Usage{}
		}
		return Usage{
			InputTokens:  int(r.Raw.UsageMetadata.PromptTokenCount),
			OutputTokens: int(r.Raw.UsageMetadata.CandidatesTokenCount),
		}
	case OpenAIResponse:
		if r.Raw == nil {
			return Usage{}
		}
		return Usage{
			InputTokens:  int(r.Raw.Usage.PromptTokens),
			OutputTokens: int(r.Raw.Usage.CompletionTokens),
		}
	case AnthropicResponse:
		if r.Raw == nil {
			return Usage{}
		}
		return Usage{
			InputTokens:  int(r.Raw.Usage.InputTokens),
			OutputTokens: int(r.Raw.Usage.OutputTokens),
		}
	case TextResponse:
		return r.Usage
	}
	return Usage{}
}
