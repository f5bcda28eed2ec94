package store

import (
	"path/filepath"
	"sync"

	"sotto/internal/domain"
)

const directRoomsFile = "direct_rooms.json"

// DirectRoomFileStore persists the peer-to-room mapping for direct
// conversations as plain JSON. The mapping is what keeps direct-room
// resolution stable across process restarts.
type DirectRoomFileStore struct {
	mu   sync.Mutex
	path string
}

var _ domain.DirectRoomStore = (*DirectRoomFileStore)(nil)

// NewDirectRoomStore creates the store rooted at dir.
func NewDirectRoomStore(dir string) (*DirectRoomFileStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &DirectRoomFileStore{path: filepath.Join(dir, directRoomsFile)}, nil
}

// SaveDirectRoom records room as the direct conversation with peer.
func (s *DirectRoomFileStore) SaveDirectRoom(peer domain.UserID, room domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := map[domain.UserID]domain.RoomID{}
	if _, err := readJSON(s.path, &rooms); err != nil {
		return err
	}
	rooms[peer] = room
	return writeJSON(s.path, rooms, 0o600)
}

// LoadDirectRoom returns the recorded direct room for peer, if any.
func (s *DirectRoomFileStore) LoadDirectRoom(peer domain.UserID) (domain.RoomID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := map[domain.UserID]domain.RoomID{}
	if _, err := readJSON(s.path, &rooms); err != nil {
		return "", false, err
	}
	room, ok := rooms[peer]
	return room, ok, nil
}

// DirectRooms returns the full peer-to-room mapping.
func (s *DirectRoomFileStore) DirectRooms() (map[domain.UserID]domain.RoomID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := map[domain.UserID]domain.RoomID{}
	if _, err := readJSON(s.path, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}
