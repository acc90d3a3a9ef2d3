package documents

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Key identifies one of the ten generated documents.
type Key string

const (
	IdeaBrief     Key = "ideaBrief"
	UserStories   Key = "userStories"
	ScreenFlow    Key = "screenFlow"
	PRD           Key = "prd"
	TechStack     Key = "techStack"
	DataModel     Key = "dataModel"
	APISpec       Key = "apiSpec"
	TestScenarios Key = "testScenarios"
	TodoMaster    Key = "todoMaster"
	PromptGuide   Key = "promptGuide"
)

var order = []Key{
	IdeaBrief, UserStories, ScreenFlow, PRD, TechStack,
	DataModel, APISpec, TestScenarios, TodoMaster, PromptGuide,
}

// Count is the number of documents in a full run.
const Count = 10

// Keys returns the canonical generation order.
func Keys() []Key {
	return append([]Key(nil), order...)
}

// Valid reports whether k names a registered document.
func (k Key) Valid() bool {
	_, ok := registry[k]
	return ok
}

func (k Key) String() string { return string(k) }

// Entry is the static definition of one document.
type Entry struct {
	Key          Key    `yaml:"key"`
	Title        string `yaml:"title"`
	FileName     string `yaml:"file"`
	SystemPrompt string `yaml:"system"`
}

//go:embed prompts.yaml
var promptsYAML []byte

var registry = mustLoad(promptsYAML)

func mustLoad(raw []byte) map[Key]Entry {
	entries, err := parseRegistry(raw)
	if err != nil {
		panic(fmt.Sprintf("documents: %v", err))
	}
	return entries
}

func parseRegistry(raw []byte) (map[Key]Entry, error) {
	var doc struct {
		Documents []Entry `yaml:"documents"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse prompt registry: %w", err)
	}
	if len(doc.Documents) != len(order) {
		return nil, fmt.Errorf("prompt registry has %d documents, want %d", len(doc.Documents), len(order))
	}
	out := make(map[Key]Entry, len(order))
	for i, e := range doc.Documents {
		if e.Key != order[i] {
			return nil, fmt.Errorf("prompt registry entry %d is %q, want %q", i, e.Key, order[i])
		}
		e.SystemPrompt = strings.TrimSpace(e.SystemPrompt)
		if e.SystemPrompt == "" || e.FileName == "" {
			return nil, fmt.Errorf("prompt registry entry %q is incomplete", e.Key)
		}
		out[e.Key] = e
	}
	return out, nil
}

// Lookup returns the registry entry for k.
func Lookup(k Key) (Entry, bool) {
	e, ok := registry[k]
	return e, ok
}

// SystemPrompt returns the per-document system prompt.
func SystemPrompt(k Key) string { return registry[k].SystemPrompt }

// FileName returns the export file name, e.g. PRD.md.
func FileName(k Key) string { return registry[k].FileName }

// Title returns a human readable name.
func Title(k Key) string {
	if e, ok := registry[k]; ok {
		return e.Title
	}
	return string(k)
}

// ParseKeys validates raw keys in the caller's order and drops duplicates.
func ParseKeys(raw []string) (valid []Key, unknown []string) {
	seen := map[Key]bool{}
	for _, r := range raw {
		k := Key(strings.TrimSpace(r))
		if !k.Valid() {
			unknown = append(unknown, r)
			continue
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		valid = append(valid, k)
	}
	return valid, unknown
}

// Ordered returns the keys of set in registry order.
func Ordered[V any](set map[Key]V) []Key {
	out := make([]Key, 0, len(set))
	for _, k := range order {
		if _, ok := set[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
