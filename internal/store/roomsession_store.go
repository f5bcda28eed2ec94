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

const roomSessionFile = "room_sessions.blob"

// roomSessionFileFormat is the sealed on-disk layout. Outbound sessions
// are keyed by room (at most one live per room); inbound sessions by
// "room|session".
type roomSessionFileFormat struct {
	Outbound map[string]domain.OutboundRoomSession `json:"outbound"`
	Inbound  map[string]domain.InboundRoomSession  `json:"inbound"`
}

// RoomSessionFileStore persists group-encryption session material sealed
// under a passphrase.
type RoomSessionFileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

var _ domain.RoomSessionStore = (*RoomSessionFileStore)(nil)

// NewRoomSessionStore creates the store rooted at dir, sealing under passphrase.
func NewRoomSessionStore(dir, passphrase string) (*RoomSessionFileStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &RoomSessionFileStore{path: filepath.Join(dir, roomSessionFile), passphrase: passphrase}, nil
}

func inboundKey(room domain.RoomID, id domain.SessionID) string {
	return string(room) + "|" + string(id)
}

func (s *RoomSessionFileStore) load() (roomSessionFileFormat, error) {
	data := roomSessionFileFormat{
		Outbound: map[string]domain.OutboundRoomSession{},
		Inbound:  map[string]domain.InboundRoomSession{},
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return data, nil
		}
		return roomSessionFileFormat{}, err
	}
	if err := openJSON(s.passphrase, b, &data); err != nil {
		return roomSessionFileFormat{}, err
	}
	if data.Outbound == nil {
		data.Outbound = map[string]domain.OutboundRoomSession{}
	}
	if data.Inbound == nil {
		data.Inbound = map[string]domain.InboundRoomSession{}
	}
	return data, nil
}

func (s *RoomSessionFileStore) save(data roomSessionFileFormat) error {
	sealed, err := sealJSON(s.passphrase, data)
	if err != nil {
		return fmt.Errorf("seal room sessions: %w", err)
	}
	return writeFile(s.path, sealed, 0o600)
}

// SaveOutbound persists the room's outbound session, replacing any
// previous one for the same room.
func (s *RoomSessionFileStore) SaveOutbound(sess domain.OutboundRoomSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	data.Outbound[string(sess.RoomID)] = sess
	return s.save(data)
}

// LoadOutbound returns the room's current outbound session, if any.
func (s *RoomSessionFileStore) LoadOutbound(room domain.RoomID) (domain.OutboundRoomSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return domain.OutboundRoomSession{}, false, err
	}
	sess, ok := data.Outbound[string(room)]
	return sess, ok, nil
}

// SaveInbound persists an imported inbound session.
func (s *RoomSessionFileStore) SaveInbound(sess domain.InboundRoomSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	data.Inbound[inboundKey(sess.RoomID, sess.ID)] = sess
	return s.save(data)
}

// LoadInbound returns the inbound session for (room, id), if present.
func (s *RoomSessionFileStore) LoadInbound(room domain.RoomID, id domain.SessionID) (domain.InboundRoomSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return domain.InboundRoomSession{}, false, err
	}
	sess, ok := data.Inbound[inboundKey(room, id)]
	return sess, ok, nil
}
