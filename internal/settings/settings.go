package settings

import (
	"maps"

	"github.com/go-viper/mapstructure/v2"

	llmclient "vibedocs/internal/llm/client"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Settings are the user preferences kept between sessions. APIKey is the
// single-key field of older releases; APIKeys holds one key per provider.
type Settings struct {
	APIKey           string            `mapstructure:"apiKey" toml:"apiKey,omitempty"`
	Theme            Theme             `mapstructure:"theme" toml:"theme"`
	Language         string            `mapstructure:"language" toml:"language"`
	AutoSave         bool              `mapstructure:"autoSave" toml:"autoSave"`
	AutoSaveInterval int               `mapstructure:"autoSaveInterval" toml:"autoSaveInterval"`
	AIProvider       string            `mapstructure:"aiProvider" toml:"aiProvider"`
	AIModel          string            `mapstructure:"aiModel" toml:"aiModel"`
	APIKeys          map[string]string `mapstructure:"apiKeys" toml:"apiKeys"`
}

func Defaults() Settings {
	return Settings{
		Theme:            ThemeSystem,
		Language:         "ko",
		AutoSave:         true,
		AutoSaveInterval: 500,
		AIProvider:       string(llmclient.ProviderGoogle),
		AIModel:          llmclient.DefaultModel(llmclient.ProviderGoogle),
		APIKeys:          map[string]string{},
	}
}

// Clone returns a copy that shares no map with s.
func (s Settings) Clone() Settings {
	s.APIKeys = maps.Clone(s.APIKeys)
	if s.APIKeys == nil {
		s.APIKeys = map[string]string{}
	}
	return s
}

// Migrate turns stored values of any release into current settings. Values
// are decoded loosely over the defaults; a field that cannot be decoded
// keeps its default. A legacy apiKey with no apiKeys map becomes the google
// key and selects the google default model.
func Migrate(raw map[string]any) Settings {
	s := Defaults()
	if len(raw) == 0 {
		return s
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &s,
	})
	if err == nil {
		_ = dec.Decode(raw)
	}
	if s.APIKeys == nil {
		s.APIKeys = map[string]string{}
	}
	if !hasKeyMap(raw) && s.APIKey != "" {
		s.AIProvider = string(llmclient.ProviderGoogle)
		s.AIModel = llmclient.DefaultModel(llmclient.ProviderGoogle)
		s.APIKeys = map[string]string{string(llmclient.ProviderGoogle): s.APIKey}
	}
	return s
}

func hasKeyMap(raw map[string]any) bool {
	switch raw["apiKeys"].(type) {
	case map[string]any, map[string]string:
		return true
	}
	return false
}

// ToMap is the loose form Migrate accepts.
func ToMap(s Settings) map[string]any {
	out := map[string]any{}
	_ = mapstructure.Decode(s.Clone(), &out)
	return out
}
