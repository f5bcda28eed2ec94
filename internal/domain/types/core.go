package types

// UserID is a fully-qualified user identifier on the routing server,
// e.g. "@alice:example.org".
type UserID string

// String returns the string form of the user ID.
func (u UserID) String() string { return string(u) }

// RoomID is the stable identifier of a conversation.
type RoomID string

// String returns the string form of the room ID.
func (r RoomID) String() string { return string(r) }

// EventID identifies a single event in a room's timeline.
type EventID string

// String returns the string form of the event ID.
func (e EventID) String() string { return string(e) }

// DeviceID identifies one installation of the client for a given user.
type DeviceID string

// String returns the string form of the device ID.
func (d DeviceID) String() string { return string(d) }

// SessionID identifies a group-encryption session within a room.
type SessionID string

// String returns the string form of the session ID.
func (s SessionID) String() string { return string(s) }

// PreKeyID uniquely identifies a signed or one-time pre-key.
type PreKeyID string

// String returns the string form of the identifier.
func (id PreKeyID) String() string { return string(id) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
