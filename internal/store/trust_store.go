package store

import (
	"path/filepath"
	"sync"

	"sotto/internal/domain"
)

const trustFile = "trust.json"

// TrustFileStore persists device trust records as plain JSON. Trust
// records hold no secrets, only the user's verification decisions.
type TrustFileStore struct {
	mu   sync.Mutex
	path string
}

var _ domain.TrustStore = (*TrustFileStore)(nil)

// NewTrustStore creates the store rooted at dir.
func NewTrustStore(dir string) (*TrustFileStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &TrustFileStore{path: filepath.Join(dir, trustFile)}, nil
}

func trustKey(user domain.UserID, device domain.DeviceID) string {
	return string(user) + "|" + string(device)
}

// SaveTrust records a verification decision for one device.
func (s *TrustFileStore) SaveTrust(rec domain.TrustRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := map[string]domain.TrustRecord{}
	if _, err := readJSON(s.path, &recs); err != nil {
		return err
	}
	recs[trustKey(rec.UserID, rec.DeviceID)] = rec
	return writeJSON(s.path, recs, 0o600)
}

// LoadTrust returns the trust record for one device, if present.
func (s *TrustFileStore) LoadTrust(user domain.UserID, device domain.DeviceID) (domain.TrustRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := map[string]domain.TrustRecord{}
	if _, err := readJSON(s.path, &recs); err != nil {
		return domain.TrustRecord{}, false, err
	}
	rec, ok := recs[trustKey(user, device)]
	return rec, ok, nil
}
