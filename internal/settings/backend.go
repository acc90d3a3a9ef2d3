package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// TOMLFile keeps settings in a TOML file, e.g. ~/.vibedocs/settings.toml.
type TOMLFile struct {
	path string
}

func NewTOMLFile(path string) (*TOMLFile, error) {
	expanded, err := ExpandPath(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	if expanded == "" {
		return nil, fmt.Errorf("settings path is required")
	}
	return &TOMLFile{path: expanded}, nil
}

func (f *TOMLFile) Path() string { return f.path }

// Load returns fs.ErrNotExist (wrapped) when the file is missing.
func (f *TOMLFile) Load() (map[string]any, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return raw, nil
}

func (f *TOMLFile) Save(s Settings) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// MemoryBackend holds settings in process memory.
type MemoryBackend struct {
	mu  sync.Mutex
	raw map[string]any
}

func NewMemoryBackend(raw map[string]any) *MemoryBackend {
	return &MemoryBackend{raw: raw}
}

func (m *MemoryBackend) Load() (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw, nil
}

func (m *MemoryBackend) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = ToMap(s)
	return nil
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	return filepath.Abs(filepath.Clean(pathValue))
}
