package timeline

import (
	"sort"
	"sync"

	"sotto/internal/domain"
)

type roomState struct {
	id        domain.RoomID
	name      string
	topic     string
	encrypted bool
	direct    bool
	members   map[domain.UserID]string // user -> display name
	messages  []domain.Message
	seen      map[domain.EventID]struct{}
	readIndex int // messages[:readIndex] are read
}

// Service is the timeline reconciler. All methods are safe for
// concurrent use; snapshots returned to callers are copies.
type Service struct {
	mu      sync.RWMutex
	ownUser domain.UserID
	rooms   map[domain.RoomID]*roomState
}

// New returns a reconciler for the given local user.
func New(ownUser domain.UserID) *Service {
	return &Service{
		ownUser: ownUser,
		rooms:   map[domain.RoomID]*roomState{},
	}
}

func (s *Service) room(id domain.RoomID) *roomState {
	r, ok := s.rooms[id]
	if !ok {
		r = &roomState{
			id:      id,
			members: map[domain.UserID]string{},
			seen:    map[domain.EventID]struct{}{},
		}
		s.rooms[id] = r
	}
	return r
}

// AddMessage inserts one reconciled message in arrival order. Messages
// arrive in authoritative server order within and across batches, so
// append plus dedup preserves it. Returns false for an already-seen
// event ID.
func (s *Service) AddMessage(msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(msg.RoomID)
	if _, dup := r.seen[msg.ID]; dup {
		return false
	}
	r.seen[msg.ID] = struct{}{}
	r.messages = append(r.messages, msg)
	return true
}

// ApplyState folds one state event into the room. It reports whether
// the joined-member set changed, which is the trigger for outbound
// session rotation.
func (s *Service) ApplyState(roomID domain.RoomID, ev domain.Event, content any) (membershipChanged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)
	switch c := content.(type) {
	case domain.MemberContent:
		if ev.StateKey == nil {
			return false
		}
		user := domain.UserID(*ev.StateKey)
		_, present := r.members[user]
		switch c.Membership {
		case "join":
			r.members[user] = c.DisplayName
			return !present
		case "leave", "ban":
			delete(r.members, user)
			return present
		}
	case domain.NameContent:
		r.name = c.Name
	case domain.TopicContent:
		r.topic = c.Topic
	case domain.EncryptionContent:
		r.encrypted = c.Algorithm == domain.GroupSessionAlgorithm
	}
	return false
}

// SetDirect flags a room as a direct conversation. Direct rooms take
// their display name from the other participant.
func (s *Service) SetDirect(roomID domain.RoomID, direct bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room(roomID).direct = direct
}

// IsEncrypted reports whether the room has encryption enabled.
func (s *Service) IsEncrypted(roomID domain.RoomID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	return ok && r.encrypted
}

// DisplayNameOf returns the stored display name for a user in a room,
// falling back to the bare user ID.
func (s *Service) DisplayNameOf(roomID domain.RoomID, user domain.UserID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rooms[roomID]; ok {
		if name := r.members[user]; name != "" {
			return name
		}
	}
	return user.String()
}

// MarkRead moves the room's read marker to the end of its timeline.
func (s *Service) MarkRead(roomID domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room(roomID)
	r.readIndex = len(r.messages)
}

// Messages returns a copy of the room's reconciled timeline.
func (s *Service) Messages(roomID domain.RoomID) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return append([]domain.Message(nil), r.messages...)
}

// Summary recomputes the room's derived summary.
func (s *Service) Summary(roomID domain.RoomID) (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, false
	}
	return s.summaryLocked(r), true
}

// Rooms returns summaries for every known room, most recent activity
// first.
func (s *Service) Rooms() []domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, s.summaryLocked(r))
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := int64(0), int64(0)
		if out[i].LastMessage != nil {
			ti = out[i].LastMessage.Timestamp
		}
		if out[j].LastMessage != nil {
			tj = out[j].LastMessage.Timestamp
		}
		if ti != tj {
			return ti > tj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindDirectRoom returns the existing direct room with exactly the
// local user and peer as joined members, scanning in stable room-ID
// order so repeated calls agree.
func (s *Service) FindDirectRoom(peer domain.UserID) (domain.RoomID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]domain.RoomID, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		r := s.rooms[id]
		if !r.direct || len(r.members) != 2 {
			continue
		}
		_, hasOwn := r.members[s.ownUser]
		_, hasPeer := r.members[peer]
		if hasOwn && hasPeer {
			return id, true
		}
	}
	return "", false
}

func (s *Service) summaryLocked(r *roomState) domain.Room {
	room := domain.Room{
		ID:          r.id,
		Topic:       r.topic,
		IsDirect:    r.direct,
		IsEncrypted: r.encrypted,
	}

	if n := len(r.messages); n > 0 {
		last := r.messages[n-1]
		room.LastMessage = &last
	}

	for _, m := range r.messages[min(r.readIndex, len(r.messages)):] {
		if !m.IsOwn {
			room.UnreadCount++
		}
	}

	room.DisplayName = r.name
	if room.DisplayName == "" && r.direct {
		for user, display := range r.members {
			if user == s.ownUser {
				continue
			}
			if display != "" {
				room.DisplayName = display
			} else {
				room.DisplayName = user.String()
			}
			break
		}
	}
	if room.DisplayName == "" {
		room.DisplayName = r.id.String()
	}
	return room
}
