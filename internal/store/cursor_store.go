package store

import (
	"path/filepath"
	"sync"

	"sotto/internal/domain"
)

const cursorFile = "cursor.json"

type cursorRecord struct {
	Cursor string `json:"cursor"`
}

// CursorFileStore persists the sync cursor. The cursor must only be
// saved after the batch it closes has been fully applied, so a crash
// replays rather than skips.
type CursorFileStore struct {
	mu   sync.Mutex
	path string
}

var _ domain.CursorStore = (*CursorFileStore)(nil)

// NewCursorStore creates the store rooted at dir.
func NewCursorStore(dir string) (*CursorFileStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &CursorFileStore{path: filepath.Join(dir, cursorFile)}, nil
}

// SaveCursor records the latest fully-applied cursor.
func (s *CursorFileStore) SaveCursor(cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path, cursorRecord{Cursor: cursor}, 0o600)
}

// LoadCursor returns the stored cursor, or "" when none exists.
func (s *CursorFileStore) LoadCursor() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec cursorRecord
	if _, err := readJSON(s.path, &rec); err != nil {
		return "", err
	}
	return rec.Cursor, nil
}
