package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"sotto/internal/domain"
)

const credentialFile = "credential.json"

// CredentialFileStore persists the session credential as plain JSON with
// owner-only permissions. The access token is a bearer secret but must be
// readable without the passphrase so a restarted process can resume
// before the user unlocks the keystore.
type CredentialFileStore struct {
	mu   sync.Mutex
	path string
}

var _ domain.CredentialStore = (*CredentialFileStore)(nil)

// NewCredentialStore creates the store rooted at dir.
func NewCredentialStore(dir string) (*CredentialFileStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &CredentialFileStore{path: filepath.Join(dir, credentialFile)}, nil
}

// Get returns the stored credential, if any.
func (s *CredentialFileStore) Get() (domain.Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cred domain.Credential
	ok, err := readJSON(s.path, &cred)
	if err != nil {
		return domain.Credential{}, false, err
	}
	if !ok || cred.IsZero() {
		return domain.Credential{}, false, nil
	}
	return cred, true, nil
}

// Set replaces the stored credential.
func (s *CredentialFileStore) Set(cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path, cred, 0o600)
}

// Clear removes the credential file. Clearing an absent credential is not
// an error.
func (s *CredentialFileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
