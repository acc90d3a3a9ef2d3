package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// FileStore keeps the checkpoint as JSON on disk. Writes go through a
// temporary file and a rename; an advisory lock next to the file keeps two
// processes from interleaving.
type FileStore struct {
	path string
	lock *flock.Flock
}

func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{path: path, lock: flock.New(path + ".lock")}, nil
}

// Path returns the JSON file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) withLock(ctx context.Context, fn func() error) error {
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock checkpoint: %w", err)
	}
	if !ok {
		return fmt.Errorf("lock checkpoint: %s is held by another process", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func (s *FileStore) Load(ctx context.Context) (*Checkpoint, error) {
	var cp *Checkpoint
	err := s.withLock(ctx, func() error {
		raw, err := os.ReadFile(s.path)
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read checkpoint: %w", err)
		}
		var out Checkpoint
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decode checkpoint: %w", err)
		}
		cp = &out
		return nil
	})
	return cp, err
}

func (s *FileStore) Save(ctx context.Context, cp *Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("checkpoint is nil")
	}
	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return s.withLock(ctx, func() error {
		tmp, err := os.CreateTemp(filepath.Dir(s.path), ".checkpoint-*.json")
		if err != nil {
			return fmt.Errorf("write checkpoint: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(raw); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write checkpoint: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("write checkpoint: %w", err)
		}
		if err := os.Rename(tmp.Name(), s.path); err != nil {
			return fmt.Errorf("replace checkpoint: %w", err)
		}
		return nil
	})
}

func (s *FileStore) Clear(ctx context.Context) error {
	return s.withLock(ctx, func() error {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove checkpoint: %w", err)
		}
		return nil
	})
}
