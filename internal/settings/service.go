package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"vibedocs/internal/documents"
	llmclient "vibedocs/internal/llm/client"
)

// Backend loads and stores settings.
type Backend interface {
	Load() (map[string]any, error)
	Save(s Settings) error
}

// Service owns the user settings. Migration runs once, when it is created.
// Key validity is kept in memory only: nil means not checked yet.
type Service struct {
	mu       sync.Mutex
	backend  Backend
	current  Settings
	keyValid *bool
}

func New(backend Backend) (*Service, error) {
	if backend == nil {
		backend = NewMemoryBackend(nil)
	}
	raw, err := backend.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &Service{backend: backend, current: Migrate(raw)}, nil
}

func (s *Service) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// ActiveAPIKey returns the key of the selected provider, falling back to the
// legacy single key.
func (s *Service) ActiveAPIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k := s.current.APIKeys[s.current.AIProvider]; k != "" {
		return k
	}
	return s.current.APIKey
}

func (s *Service) APIKeyValid() *bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keyValid == nil {
		return nil
	}
	v := *s.keyValid
	return &v
}

func (s *Service) SetAPIKeyValid(valid *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if valid == nil {
		s.keyValid = nil
		return
	}
	v := *valid
	s.keyValid = &v
}

// SetAIProvider selects a provider and its default model.
func (s *Service) SetAIProvider(raw string) error {
	p, err := llmclient.ParseProvider(raw)
	if err != nil {
		return err
	}
	return s.update(true, func(cur *Settings) error {
		cur.AIProvider = string(p)
		cur.AIModel = llmclient.DefaultModel(p)
		return nil
	})
}

func (s *Service) SetAIModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model is required")
	}
	return s.update(false, func(cur *Settings) error {
		cur.AIModel = model
		return nil
	})
}

// SetProviderAPIKey stores key for provider. Setting the selected
// provider's key also updates the legacy field.
func (s *Service) SetProviderAPIKey(raw, key string) error {
	p, err := llmclient.ParseProvider(raw)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	return s.update(true, func(cur *Settings) error {
		cur.APIKeys[string(p)] = key
		if cur.AIProvider == string(p) {
			cur.APIKey = key
		}
		return nil
	})
}

func (s *Service) ClearProviderAPIKey(raw string) error {
	p, err := llmclient.ParseProvider(raw)
	if err != nil {
		return err
	}
	return s.update(true, func(cur *Settings) error {
		delete(cur.APIKeys, string(p))
		if cur.AIProvider == string(p) {
			cur.APIKey = ""
		}
		return nil
	})
}

// SetAPIKey is the single-key setter of older releases; the key is treated
// as a google key.
func (s *Service) SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	return s.update(true, func(cur *Settings) error {
		cur.APIKey = key
		cur.APIKeys[string(llmclient.ProviderGoogle)] = key
		return nil
	})
}

func (s *Service) SetTheme(t Theme) error {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return fmt.Errorf("unknown theme: %s", t)
	}
	return s.update(false, func(cur *Settings) error {
		cur.Theme = t
		return nil
	})
}

func (s *Service) SetLanguage(lang string) error {
	switch l := documents.Language(strings.TrimSpace(lang)); l {
	case documents.LanguageKorean, documents.LanguageEnglish:
		return s.update(false, func(cur *Settings) error {
			cur.Language = string(l)
			return nil
		})
	}
	return fmt.Errorf("unsupported language: %s", lang)
}

func (s *Service) SetAutoSave(enabled bool) error {
	return s.update(false, func(cur *Settings) error {
		cur.AutoSave = enabled
		return nil
	})
}

// Update applies fn to a copy and stores the result.
func (s *Service) Update(fn func(*Settings)) error {
	return s.update(false, func(cur *Settings) error {
		fn(cur)
		if cur.APIKeys == nil {
			cur.APIKeys = map[string]string{}
		}
		return nil
	})
}

// Reset restores the defaults and forgets the key check.
func (s *Service) Reset() error {
	return s.update(true, func(cur *Settings) error {
		*cur = Defaults()
		return nil
	})
}

func (s *Service) update(resetValidity bool, fn func(*Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.backend.Save(next); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.current = next
	if resetValidity {
		s.keyValid = nil
	}
	return nil
}
