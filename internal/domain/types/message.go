package types

// MessageKind classifies a timeline message for display.
type MessageKind string

// Message kinds.
const (
	KindText   MessageKind = "text"
	KindImage  MessageKind = "image"
	KindFile   MessageKind = "file"
	KindNotice MessageKind = "notice"
)

// Message is one reconciled timeline entry. Immutable once constructed;
// the reconciler guarantees no two messages with the same ID coexist in
// a room's list.
type Message struct {
	ID                EventID     `json:"id"`
	RoomID            RoomID      `json:"room_id"`
	Sender            UserID      `json:"sender"`
	SenderDisplayName string      `json:"sender_display_name"`
	Body              string      `json:"body"`
	Timestamp         int64       `json:"timestamp"` // milliseconds since epoch, server-reported
	Kind              MessageKind `json:"kind"`
	IsOwn             bool        `json:"is_own"`
	WasEncrypted      bool        `json:"was_encrypted"`
	IsVerifiedSender  bool        `json:"is_verified_sender"`
}

// Room is a derived summary of one conversation. Never hand-constructed:
// the reconciler recomputes it whenever membership, name, or timeline
// state changes.
type Room struct {
	ID          RoomID   `json:"id"`
	DisplayName string   `json:"display_name"`
	Topic       string   `json:"topic,omitempty"`
	IsDirect    bool     `json:"is_direct"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
	IsEncrypted bool     `json:"is_encrypted"`
}

// RoomInvite is surfaced when the sync stream reports a pending invite.
// Accepting it is a deliberate user action, never automatic.
type RoomInvite struct {
	RoomID  RoomID `json:"room_id"`
	Inviter UserID `json:"inviter"`
}

// VerificationRequest is surfaced when an unknown device for a known
// user appears; trust is only ever granted by explicit user action.
type VerificationRequest struct {
	UserID      UserID      `json:"user_id"`
	DeviceID    DeviceID    `json:"device_id"`
	Fingerprint Fingerprint `json:"fingerprint"`
}
