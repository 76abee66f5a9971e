package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"photofx-bot/internal/access"
)

// JSONStore persists snapshots as a single JSON file. Writes go
// through a temp file plus rename so a crash mid-save never leaves a
// truncated state file.
type JSONStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONStore creates a JSON-file-backed store at the given path.
func NewJSONStore(path string) (*JSONStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	return &JSONStore{path: path}, nil
}

// Load reads the snapshot from disk. A missing file yields an empty
// snapshot.
func (s *JSONStore) Load() (*access.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return emptySnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	snap := emptySnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	return snap, nil
}

// Save writes the snapshot atomically.
func (s *JSONStore) Save(snap *access.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Close is a no-op for the file-backed store.
func (s *JSONStore) Close() error {
	return nil
}
