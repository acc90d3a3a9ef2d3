package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore keeps the checkpoint in process memory.
type MemoryStore struct {
	mu sync.RWMutex
	cp *Checkpoint
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(ctx context.Context) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cp == nil {
		return nil, ErrNotFound
	}
	return s.cp.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	s.cp = cp.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cp = nil
	s.mu.Unlock()
	return nil
}
