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

const prekeyFile = "prekeys.blob"

// signedRecord is the stored form of one signed pre-key pair.
type signedRecord struct {
	ID   domain.PreKeyID      `json:"id"`
	Priv domain.X25519Private `json:"priv"`
	Pub  domain.X25519Public  `json:"pub"`
	Sig  []byte               `json:"sig"`
}

// prekeyFileFormat is the sealed on-disk layout for all pre-key state.
type prekeyFileFormat struct {
	Signed  []signedRecord             `json:"signed"`
	Current domain.PreKeyID            `json:"current"`
	OneTime []domain.OneTimePreKeyPair `json:"one_time"`
}

// PreKeyFileStore keeps signed and one-time pre-keys in a single sealed
// file. One-time pre-keys are removed on consumption so a claimed key can
// never satisfy a second handshake.
type PreKeyFileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

var _ domain.PreKeyStore = (*PreKeyFileStore)(nil)

// NewPreKeyStore creates the store rooted at dir, sealing under passphrase.
func NewPreKeyStore(dir, passphrase string) (*PreKeyFileStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &PreKeyFileStore{path: filepath.Join(dir, prekeyFile), passphrase: passphrase}, nil
}

// load reads the sealed file; a missing file yields an empty state.
func (s *PreKeyFileStore) load() (prekeyFileFormat, error) {
	var data prekeyFileFormat
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return data, nil
		}
		return data, err
	}
	if err := openJSON(s.passphrase, b, &data); err != nil {
		return prekeyFileFormat{}, err
	}
	return data, nil
}

func (s *PreKeyFileStore) save(data prekeyFileFormat) error {
	sealed, err := sealJSON(s.passphrase, data)
	if err != nil {
		return fmt.Errorf("seal prekeys: %w", err)
	}
	return writeFile(s.path, sealed, 0o600)
}

// SaveSignedPreKey records a signed pre-key pair, replacing any existing
// record with the same ID.
func (s *PreKeyFileStore) SaveSignedPreKey(
	id domain.PreKeyID,
	priv domain.X25519Private,
	pub domain.X25519Public,
	sig []byte,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	rec := signedRecord{ID: id, Priv: priv, Pub: pub, Sig: sig}
	replaced := false
	for i := range data.Signed {
		if data.Signed[i].ID == id {
			data.Signed[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		data.Signed = append(data.Signed, rec)
	}
	return s.save(data)
}

// LoadSignedPreKey returns the signed pre-key pair with the given ID.
func (s *PreKeyFileStore) LoadSignedPreKey(id domain.PreKeyID) (
	priv domain.X25519Private,
	pub domain.X25519Public,
	sig []byte,
	ok bool,
	err error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return priv, pub, nil, false, err
	}
	for _, rec := range data.Signed {
		if rec.ID == id {
			return rec.Priv, rec.Pub, rec.Sig, true, nil
		}
	}
	return priv, pub, nil, false, nil
}

// SetCurrentSignedPreKeyID marks the signed pre-key published to the server.
func (s *PreKeyFileStore) SetCurrentSignedPreKeyID(id domain.PreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	data.Current = id
	return s.save(data)
}

// CurrentSignedPreKeyID returns the currently published signed pre-key ID.
func (s *PreKeyFileStore) CurrentSignedPreKeyID() (domain.PreKeyID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return "", false, err
	}
	if data.Current == "" {
		return "", false, nil
	}
	return data.Current, true, nil
}

// SaveOneTimePreKeys appends a batch of freshly generated one-time pre-keys.
func (s *PreKeyFileStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	data.OneTime = append(data.OneTime, pairs...)
	return s.save(data)
}

// ConsumeOneTimePreKey returns the pair with the given ID and deletes it.
func (s *PreKeyFileStore) ConsumeOneTimePreKey(id domain.PreKeyID) (
	priv domain.X25519Private,
	pub domain.X25519Public,
	ok bool,
	err error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return priv, pub, false, err
	}
	for i, pair := range data.OneTime {
		if pair.ID == id {
			data.OneTime = append(data.OneTime[:i], data.OneTime[i+1:]...)
			if err := s.save(data); err != nil {
				return priv, pub, false, err
			}
			return pair.Priv, pair.Pub, true, nil
		}
	}
	return priv, pub, false, nil
}

// ListOneTimePreKeyPublics returns the public halves of all unconsumed
// one-time pre-keys.
func (s *PreKeyFileStore) ListOneTimePreKeyPublics() ([]domain.OneTimePreKeyPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}
	publics := make([]domain.OneTimePreKeyPublic, 0, len(data.OneTime))
	for _, pair := range data.OneTime {
		publics = append(publics, domain.OneTimePreKeyPublic{ID: pair.ID, Pub: pair.Pub})
	}
	return publics, nil
}
