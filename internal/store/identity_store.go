package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"sotto/internal/domain"
)

const identityFile = "identity.blob"

// ErrIdentityMissing is returned by LoadIdentity when no identity has
// been generated yet.
var ErrIdentityMissing = errors.New("no identity on disk")

// IdentityFileStore persists the long-term identity keys sealed under a
// passphrase.
type IdentityFileStore struct {
	mu   sync.Mutex
	path string
}

var _ domain.IdentityStore = (*IdentityFileStore)(nil)

// NewIdentityStore creates the store rooted at dir.
func NewIdentityStore(dir string) (*IdentityFileStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &IdentityFileStore{path: filepath.Join(dir, identityFile)}, nil
}

// SaveIdentity seals id under passphrase and writes it to disk.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := sealJSON(passphrase, id)
	if err != nil {
		return fmt.Errorf("seal identity: %w", err)
	}
	return writeFile(s.path, sealed, 0o600)
}

// LoadIdentity reads and unseals the identity.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Identity{}, ErrIdentityMissing
		}
		return domain.Identity{}, err
	}

	var id domain.Identity
	if err := openJSON(passphrase, b, &id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// HasIdentity reports whether an identity file exists, without needing
// the passphrase.
func (s *IdentityFileStore) HasIdentity() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
