package types

// OutboundRoomSession is the sender side of a room's group-encryption
// session: a message-key chain advanced once per encrypted send. A new
// session is established on first encrypted send and rotated when its
// budget is exhausted or membership changes.
type OutboundRoomSession struct {
	RoomID     RoomID       `json:"room_id"`
	ID         SessionID    `json:"id"`
	ChainKey   []byte       `json:"chain_key"`
	Index      uint32       `json:"index"`
	SenderKey  X25519Public `json:"sender_key"`
	CreatedUTC int64        `json:"created_utc"`
	// SharedWith records every device the session key was distributed
	// to, keyed by "user|device". Distribution to all currently-known
	// devices must complete before the first ciphertext is sent.
	SharedWith map[string]bool `json:"shared_with"`
	// Stale marks the session for replacement on the next send. Set on
	// membership change; inbound copies held by other devices are
	// unaffected.
	Stale bool `json:"stale"`
}

// InboundRoomSession is the receiver side of a group session imported
// from a key share. FirstIndex is the earliest message index the share
// grants access to: messages before it are permanently undecryptable
// for this device.
type InboundRoomSession struct {
	RoomID     RoomID            `json:"room_id"`
	ID         SessionID         `json:"id"`
	SenderKey  X25519Public      `json:"sender_key"`
	ChainKey   []byte            `json:"chain_key"`
	Index      uint32            `json:"index"` // chain position of ChainKey
	FirstIndex uint32            `json:"first_index"`
	Skipped    map[uint32][]byte `json:"skipped,omitempty"`
}

// RoomKeyShare is the plaintext payload carried over a pairwise device
// channel to hand another device an inbound session.
type RoomKeyShare struct {
	RoomID    RoomID       `json:"room_id"`
	SessionID SessionID    `json:"session_id"`
	ChainKey  []byte       `json:"chain_key"`
	Index     uint32       `json:"index"`
	SenderKey X25519Public `json:"sender_key"`
}

// TrustRecord marks a (user, device) pair as verified. Mutated only by
// explicit user action; never auto-trusted, never revoked by VerifyDevice.
type TrustRecord struct {
	UserID      UserID   `json:"user_id"`
	DeviceID    DeviceID `json:"device_id"`
	Trusted     bool     `json:"trusted"`
	VerifiedUTC int64    `json:"verified_utc,omitempty"`
}
