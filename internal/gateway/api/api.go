// Package api holds the JSON bodies exchanged with the gateway. The gateway
// handlers decode them and the gateway client encodes them.
package api

import (
	"strings"

	"vibedocs/internal/documents"
	llmclient "vibedocs/internal/llm/client"
	"vibedocs/internal/validation"
)

// GenerateBody is the body of the generation stream endpoint and the first
// websocket frame.
type GenerateBody struct {
	APIKey        string                   `json:"apiKey"`
	Idea          string                   `json:"idea"`
	AppType       string                   `json:"appType"`
	Template      string                   `json:"template,omitempty"`
	Provider      string                   `json:"provider,omitempty"`
	Model         string                   `json:"model,omitempty"`
	Language      string                   `json:"language,omitempty"`
	SkipDocuments []documents.Key          `json:"skipDocuments,omitempty"`
	ExistingDocs  map[documents.Key]string `json:"existingDocs,omitempty"`
}

// RegenerateBody adds the keys to rerun.
type RegenerateBody struct {
	GenerateBody
	DocumentKeys []string `json:"documentKeys"`
}

// StreamFrame is the first websocket frame. Mode "regenerate" selects the
// targeted rerun; anything else starts a full run.
type StreamFrame struct {
	Mode string `json:"mode,omitempty"`
	RegenerateBody
}

const ModeRegenerate = "regenerate"

func (f StreamFrame) Regenerate() bool {
	return strings.EqualFold(strings.TrimSpace(f.Mode), ModeRegenerate)
}

type ValidateBody struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	Model    string `json:"model,omitempty"`
}

// ValidateResponse is validation.Result on the wire.
type ValidateResponse = validation.Result

type AIGenerateBody struct {
	Provider     string `json:"provider"`
	APIKey       string `json:"apiKey"`
	Model        string `json:"model,omitempty"`
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	MaxTokens    int    `json:"maxTokens,omitempty"`
}

type AIGenerateResponse struct {
	Success bool             `json:"success"`
	Text    string           `json:"text,omitempty"`
	Usage   *llmclient.Usage `json:"usage,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// ErrorBody is returned for requests rejected before a stream opens.
type ErrorBody struct {
	Error     string         `json:"error"`
	ErrorKind llmclient.Kind `json:"errorKind,omitempty"`
	Hint      string         `json:"hint,omitempty"`
}
