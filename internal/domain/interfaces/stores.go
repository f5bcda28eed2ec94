package interfaces

import domaintypes "sotto/internal/domain/types"

// CredentialStore persists the session credential bundle. Implementations
// must be atomic from the engine's perspective: Get never observes a
// partially-written credential.
type CredentialStore interface {
	Get() (domaintypes.Credential, bool, error)
	Set(domaintypes.Credential) error
	Clear() error
}

// IdentityStore persists the device's long-term identity keys, sealed
// under a passphrase.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	HasIdentity() (bool, error)
}

// PreKeyStore manages signed and one-time pre-keys on disk.
type PreKeyStore interface {
	SaveSignedPreKey(
		id domaintypes.PreKeyID,
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
	) error
	LoadSignedPreKey(id domaintypes.PreKeyID) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
		ok bool,
		err error,
	)
	SetCurrentSignedPreKeyID(id domaintypes.PreKeyID) error
	CurrentSignedPreKeyID() (domaintypes.PreKeyID, bool, error)

	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	ConsumeOneTimePreKey(id domaintypes.PreKeyID) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		ok bool,
		err error,
	)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)
}

// ChannelStore keeps per-device pairwise ratchet state.
type ChannelStore interface {
	SaveChannel(ch domaintypes.PairwiseChannel) error
	LoadChannel(user domaintypes.UserID, device domaintypes.DeviceID) (domaintypes.PairwiseChannel, bool, error)
}

// RoomSessionStore persists group-encryption session material per room.
type RoomSessionStore interface {
	SaveOutbound(s domaintypes.OutboundRoomSession) error
	LoadOutbound(room domaintypes.RoomID) (domaintypes.OutboundRoomSession, bool, error)
	SaveInbound(s domaintypes.InboundRoomSession) error
	LoadInbound(room domaintypes.RoomID, id domaintypes.SessionID) (domaintypes.InboundRoomSession, bool, error)
}

// TrustStore persists device trust records across sessions.
type TrustStore interface {
	SaveTrust(rec domaintypes.TrustRecord) error
	LoadTrust(user domaintypes.UserID, device domaintypes.DeviceID) (domaintypes.TrustRecord, bool, error)
}

// CursorStore persists the sync cursor so a restarted process resumes
// the stream instead of replaying from scratch.
type CursorStore interface {
	SaveCursor(cursor string) error
	LoadCursor() (string, error)
}

// DirectRoomStore remembers which room serves as the direct
// conversation with each peer. The record outlives the process, so
// direct-room resolution stays stable across restarts and never waits
// on membership sync.
type DirectRoomStore interface {
	SaveDirectRoom(peer domaintypes.UserID, room domaintypes.RoomID) error
	LoadDirectRoom(peer domaintypes.UserID) (domaintypes.RoomID, bool, error)
	DirectRooms() (map[domaintypes.UserID]domaintypes.RoomID, error)
}
