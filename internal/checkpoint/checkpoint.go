package checkpoint

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"vibedocs/internal/documents"
)

// Slot is the single storage slot every backend writes to.
const Slot = "vibedocs.partial-generation"

var ErrNotFound = errors.New("checkpoint not found")

// Store persists the one partial-generation checkpoint. Only the client
// state machine writes to it.
type Store interface {
	Load(ctx context.Context) (*Checkpoint, error)
	Save(ctx context.Context, cp *Checkpoint) error
	Clear(ctx context.Context) error
}

// Checkpoint records how far a run got so a later session can resume it.
// Field names are stable across releases.
type Checkpoint struct {
	RunID         string                   `json:"runId"`
	Idea          string                   `json:"idea"`
	AppType       string                   `json:"appType"`
	Template      string                   `json:"template,omitempty"`
	Provider      string                   `json:"provider"`
	Model         string                   `json:"model"`
	Language      string                   `json:"language,omitempty"`
	CompletedDocs map[documents.Key]string `json:"completedDocs"`
	FailedDocs    []documents.Key          `json:"failedDocs"`
	PendingDocs   []documents.Key          `json:"pendingDocs"`
	LastUpdated   time.Time                `json:"lastUpdated"`
}

// Params describes the run a checkpoint belongs to.
type Params struct {
	Idea     string
	AppType  string
	Template string
	Provider string
	Model    string
	Language string
}

// New starts a checkpoint with every document pending and a fresh run id.
func New(p Params, now time.Time) *Checkpoint {
	return &Checkpoint{
		RunID:         uuid.NewString(),
		Idea:          p.Idea,
		AppType:       p.AppType,
		Template:      p.Template,
		Provider:      p.Provider,
		Model:         p.Model,
		Language:      p.Language,
		CompletedDocs: map[documents.Key]string{},
		FailedDocs:    []documents.Key{},
		PendingDocs:   documents.Keys(),
		LastUpdated:   now,
	}
}

// Params returns the run description.
func (c *Checkpoint) Params() Params {
	return Params{
		Idea:     c.Idea,
		AppType:  c.AppType,
		Template: c.Template,
		Provider: c.Provider,
		Model:    c.Model,
		Language: c.Language,
	}
}

// MarkCompleted stores content and moves k out of the failed and pending sets.
func (c *Checkpoint) MarkCompleted(k documents.Key, content string, now time.Time) {
	if !k.Valid() {
		return
	}
	if c.CompletedDocs == nil {
		c.CompletedDocs = map[documents.Key]string{}
	}
	c.CompletedDocs[k] = content
	c.FailedDocs = without(c.FailedDocs, k)
	c.PendingDocs = without(c.PendingDocs, k)
	c.LastUpdated = now
}

// MarkFailed moves k into the failed set.
func (c *Checkpoint) MarkFailed(k documents.Key, now time.Time) {
	if !k.Valid() {
		return
	}
	delete(c.CompletedDocs, k)
	c.PendingDocs = without(c.PendingDocs, k)
	c.FailedDocs = withKey(c.FailedDocs, k)
	c.LastUpdated = now
}

// Resumable reports whether at least one document can be reused.
func (c *Checkpoint) Resumable() bool {
	return c != nil && len(c.CompletedDocs) > 0
}

// Remaining returns the keys not yet completed, in registry order.
func (c *Checkpoint) Remaining() []documents.Key {
	var out []documents.Key
	for _, k := range documents.Keys() {
		if _, ok := c.CompletedDocs[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// Completed returns the completed keys in registry order.
func (c *Checkpoint) Completed() []documents.Key {
	return documents.Ordered(c.CompletedDocs)
}

// Clone returns a deep copy.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	out := *c
	out.CompletedDocs = make(map[documents.Key]string, len(c.CompletedDocs))
	for k, v := range c.CompletedDocs {
		out.CompletedDocs[k] = v
	}
	out.FailedDocs = slices.Clone(c.FailedDocs)
	out.PendingDocs = slices.Clone(c.PendingDocs)
	return &out
}

func without(keys []documents.Key, k documents.Key) []documents.Key {
	out := keys[:0:0]
	for _, x := range keys {
		if x != k {
			out = append(out, x)
		}
	}
	return out
}

// withKey adds k and keeps the slice in registry order.
func withKey(keys []documents.Key, k documents.Key) []documents.Key {
	set := map[documents.Key]bool{k: true}
	for _, x := range keys {
		set[x] = true
	}
	return documents.Ordered(set)
}
