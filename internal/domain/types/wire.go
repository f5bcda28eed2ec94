package types

import "encoding/json"

// Routing-server event types understood by the engine.
const (
	EventTypeMessage    = "room.message"
	EventTypeEncrypted  = "room.encrypted"
	EventTypeMember     = "room.member"
	EventTypeName       = "room.name"
	EventTypeTopic      = "room.topic"
	EventTypeEncryption = "room.encryption"
	EventTypeKeyShare   = "channel.key_share" // to-device only
)

// GroupSessionAlgorithm identifies the group-encryption scheme carried
// in EncryptedContent envelopes.
const GroupSessionAlgorithm = "sotto.group.v1"

// Event is a raw protocol event as delivered by the routing server.
type Event struct {
	ID             EventID         `json:"event_id"`
	Type           string          `json:"type"`
	Sender         UserID          `json:"sender"`
	RoomID         RoomID          `json:"room_id,omitempty"`
	OriginServerTS int64           `json:"origin_server_ts"`
	StateKey       *string         `json:"state_key,omitempty"`
	Content        json.RawMessage `json:"content"`
}

// ToDeviceEvent is an event delivered directly to this device rather
// than into a room timeline. Key shares travel this way.
type ToDeviceEvent struct {
	Type    string          `json:"type"`
	Sender  UserID          `json:"sender"`
	Content json.RawMessage `json:"content"`
}

// MessageContent is the content body of a plaintext room.message event,
// and the plaintext recovered from a room.encrypted one.
type MessageContent struct {
	MsgType  MessageKind `json:"msgtype"`
	Body     string      `json:"body"`
	URL      string      `json:"url,omitempty"`
	Filename string      `json:"filename,omitempty"`
}

// EncryptedContent is the content body of a room.encrypted event.
type EncryptedContent struct {
	Algorithm    string       `json:"algorithm"`
	SenderKey    X25519Public `json:"sender_key"`
	SenderDevice DeviceID     `json:"sender_device"`
	SessionID    SessionID    `json:"session_id"`
	Index        uint32       `json:"index"`
	Ciphertext   []byte       `json:"ciphertext"`
}

// MemberContent is the content of a room.member state event.
type MemberContent struct {
	Membership  string `json:"membership"` // "join", "invite", "leave"
	DisplayName string `json:"displayname,omitempty"`
}

// NameContent is the content of a room.name state event.
type NameContent struct {
	Name string `json:"name"`
}

// TopicContent is the content of a room.topic state event.
type TopicContent struct {
	Topic string `json:"topic"`
}

// EncryptionContent is the content of a room.encryption state event.
type EncryptionContent struct {
	Algorithm string `json:"algorithm"`
}

// RoomMember is one entry from the room members endpoint.
type RoomMember struct {
	UserID      UserID `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Membership  string `json:"membership"`
}

// SyncResponse is one batch from the long-poll sync endpoint.
type SyncResponse struct {
	NextBatch string          `json:"next_batch"`
	Rooms     RoomsSection    `json:"rooms"`
	ToDevice  ToDeviceSection `json:"to_device"`
}

// RoomsSection groups per-room sync data by membership state.
type RoomsSection struct {
	Join   map[RoomID]JoinedRoomSync  `json:"join,omitempty"`
	Invite map[RoomID]InvitedRoomSync `json:"invite,omitempty"`
	Leave  map[RoomID]LeftRoomSync    `json:"leave,omitempty"`
}

// JoinedRoomSync contains sync data for a joined room.
type JoinedRoomSync struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// InvitedRoomSync contains sync data for a room this user was invited to.
type InvitedRoomSync struct {
	InviteState StateSection `json:"invite_state"`
}

// LeftRoomSync contains sync data for a room this user has left.
type LeftRoomSync struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// TimelineSection holds new timeline events in authoritative server order.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch,omitempty"`
	Limited   bool    `json:"limited,omitempty"`
}

// StateSection holds state-event deltas.
type StateSection struct {
	Events []Event `json:"events"`
}

// ToDeviceSection holds direct-to-device events from a sync batch.
type ToDeviceSection struct {
	Events []ToDeviceEvent `json:"events"`
}

// CreateRoomRequest holds parameters for creating a room.
type CreateRoomRequest struct {
	Name      string   `json:"name,omitempty"`
	Topic     string   `json:"topic,omitempty"`
	Invite    []UserID `json:"invite,omitempty"`
	Direct    bool     `json:"direct,omitempty"`
	Encrypted bool     `json:"encrypted,omitempty"`
}

// KeyUpload is the payload for publishing this device's keys.
type KeyUpload struct {
	DeviceKeys            DeviceKeys            `json:"device_keys"`
	SignedPreKeyID        PreKeyID              `json:"signed_pre_key_id"`
	SignedPreKey          X25519Public          `json:"signed_pre_key"`
	SignedPreKeySignature []byte                `json:"signed_pre_key_signature"`
	OneTimePreKeys        []OneTimePreKeyPublic `json:"one_time_pre_keys,omitempty"`
}
