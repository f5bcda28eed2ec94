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

const channelFile = "channels.blob"

// ChannelFileStore keeps pairwise ratchet state, one record per remote
// device, in a single sealed file keyed by "user|device".
type ChannelFileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

var _ domain.ChannelStore = (*ChannelFileStore)(nil)

// NewChannelStore creates the store rooted at dir, sealing under passphrase.
func NewChannelStore(dir, passphrase string) (*ChannelFileStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &ChannelFileStore{path: filepath.Join(dir, channelFile), passphrase: passphrase}, nil
}

func channelKey(user domain.UserID, device domain.DeviceID) string {
	return string(user) + "|" + string(device)
}

func (s *ChannelFileStore) load() (map[string]domain.PairwiseChannel, error) {
	chans := map[string]domain.PairwiseChannel{}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return chans, nil
		}
		return nil, err
	}
	if err := openJSON(s.passphrase, b, &chans); err != nil {
		return nil, err
	}
	return chans, nil
}

// SaveChannel persists the ratchet state for one remote device. The
// caller must save before any ciphertext produced from the new state
// leaves the process.
func (s *ChannelFileStore) SaveChannel(ch domain.PairwiseChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chans, err := s.load()
	if err != nil {
		return err
	}
	chans[channelKey(ch.UserID, ch.DeviceID)] = ch

	sealed, err := sealJSON(s.passphrase, chans)
	if err != nil {
		return fmt.Errorf("seal channels: %w", err)
	}
	return writeFile(s.path, sealed, 0o600)
}

// LoadChannel returns the ratchet state for one remote device, if present.
func (s *ChannelFileStore) LoadChannel(user domain.UserID, device domain.DeviceID) (domain.PairwiseChannel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chans, err := s.load()
	if err != nil {
		return domain.PairwiseChannel{}, false, err
	}
	ch, ok := chans[channelKey(user, device)]
	return ch, ok, nil
}
