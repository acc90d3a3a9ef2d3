package llmclient

import (
	"fmt"
	"strings"
)

// ModelLevel is a coarse cost/capability tier shown next to a model.
type ModelLevel string

const (
	ModelLevelLow    ModelLevel = "low"
	ModelLevelMiddle ModelLevel = "middle"
	ModelLevelHigh   ModelLevel = "high"
)

type ModelInfo struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Level         ModelLevel `json:"level"`
	ContextWindow int        `json:"contextWindow"`
	Recommended   bool       `json:"recommended,omitempty"`
}

type ProviderInfo struct {
	Provider     Provider    `json:"provider"`
	Name         string      `json:"name"`
	KeyPrefix    string      `json:"keyPrefix"`
	KeyHintURL   string      `json:"keyHintUrl"`
	DocsURL      string      `json:"docsUrl"`
	DefaultModel string      `json:"defaultModel"`
	Models       []ModelInfo `json:"models"`
	// ProbeModels are tried in order when validating a key without an explicit model.
	ProbeModels []string `json:"-"`
}

// MinKeyLength is the shortest key accepted by the local format check.
const MinKeyLength = 20

var catalog = map[Provider]ProviderInfo{
	ProviderGoogle: {
		Provider:     ProviderGoogle,
		Name:         "Google Gemini",
		KeyPrefix:    "AIza",
		KeyHintURL:   "https://aistudio.google.com/apikey",
		DocsURL:      "https://ai.google.dev/gemini-api/docs",
		DefaultModel: "gemini-2.5-flash",
		Models: []ModelInfo{
			{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Description: "Latest fast model", Level: ModelLevelLow, ContextWindow: 1048576, Recommended: true},
			{ID: "gemini-2.0-flash-exp", Name: "Gemini 2.0 Flash (Experimental)", Description: "Experimental fast model", Level: ModelLevelLow, ContextWindow: 1048576},
			{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Description: "Fast and versatile", Level: ModelLevelLow, ContextWindow: 1048576},
			{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Description: "Complex reasoning", Level: ModelLevelHigh, ContextWindow: 2097152},
			{ID: "gemini-pro", Name: "Gemini Pro", Description: "Stable general model", Level: ModelLevelMiddle, ContextWindow: 32768},
		},
		ProbeModels: []string{"gemini-2.5-flash", "gemini-1.5-flash", "gemini-pro"},
	},
	ProviderOpenAI: {
		Provider:     ProviderOpenAI,
		Name:         "OpenAI",
		KeyPrefix:    "sk-",
		KeyHintURL:   "https://platform.openai.com/api-keys",
		DocsURL:      "https://platform.openai.com/docs",
		DefaultModel: "gpt-4o",
		Models: []ModelInfo{
			{ID: "gpt-4o", Name: "GPT-4o", Description: "Flagship multimodal model", Level: ModelLevelHigh, ContextWindow: 128000, Recommended: true},
			{ID: "gpt-4o-mini", Name: "GPT-4o mini", Description: "Fast and affordable", Level: ModelLevelLow, ContextWindow: 128000},
			{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Description: "Previous flagship", Level: ModelLevelHigh, ContextWindow: 128000},
			{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Description: "Legacy fast model", Level: ModelLevelLow, ContextWindow: 16385},
			{ID: "o1-preview", Name: "o1 preview", Description: "Reasoning model", Level: ModelLevelHigh, ContextWindow: 128000},
			{ID: "o1-mini", Name: "o1 mini", Description: "Small reasoning model", Level: ModelLevelMiddle, ContextWindow: 128000},
		},
		ProbeModels: []string{"gpt-4o-mini", "gpt-3.5-turbo"},
	},
	ProviderAnthropic: {
		Provider:     ProviderAnthropic,
		Name:         "Anthropic Claude",
		KeyPrefix:    "sk-ant-",
		KeyHintURL:   "https://console.anthropic.com/settings/keys",
		DocsURL:      "https://docs.anthropic.com",
		DefaultModel: "claude-sonnet-4-20250514",
		Models: []ModelInfo{
			{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Description: "Balanced flagship", Level: ModelLevelHigh, ContextWindow: 200000, Recommended: true},
			{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Description: "Previous balanced model", Level: ModelLevelMiddle, ContextWindow: 200000},
			{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Description: "Fast and affordable", Level: ModelLevelLow, ContextWindow: 200000},
			{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", Description: "Most capable", Level: ModelLevelHigh, ContextWindow: 200000},
		},
		ProbeModels: []string{"claude-3-5-haiku-20241022", "claude-sonnet-4-20250514"},
	},
}

// Lookup returns catalog metadata for p.
func Lookup(p Provider) (ProviderInfo, bool) {
	info, ok := catalog[p]
	return info, ok
}

// Catalog returns every provider entry in display order.
func Catalog() []ProviderInfo {
	out := make([]ProviderInfo, 0, len(catalog))
	for _, p := range Providers() {
		out = append(out, catalog[p])
	}
	return out
}

// DefaultModel returns the model used when a request names none.
func DefaultModel(p Provider) string {
	return catalog[p].DefaultModel
}

// KeyHint returns the URL where a key for p can be created.
func KeyHint(p Provider) string {
	return catalog[p].KeyHintURL
}

// ProbeCandidates returns the ordered models tried when validating a key.
// An explicit model is the only candidate.
func ProbeCandidates(p Provider, model string) []string {
	if m := strings.TrimSpace(model); m != "" {
		return []string{m}
	}
	return append([]string(nil), catalog[p].ProbeModels...)
}

// CheckKeyFormat performs the local shape check on an API key. It never
// touches the network.
func CheckKeyFormat(p Provider, key string) error {
	info, ok := catalog[p]
	if !ok {
		return Malformed("unsupported provider: %s", p)
	}
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, info.KeyPrefix) && len(key) >= MinKeyLength {
		return nil
	}
	return &FormatError{
		Provider: p,
		Message:  fmt.Sprintf("%s API keys start with %q; check the key format", info.Name, info.KeyPrefix),
		Hint:     info.KeyHintURL,
	}
}
