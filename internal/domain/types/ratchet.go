package types

// RatchetHeader is sent alongside every pairwise-channel ciphertext.
type RatchetHeader struct {
	DiffieHellmanPublicKey []byte `json:"dh_pub"`
	PreviousChainLength    uint32 `json:"pn"`
	MessageIndex           uint32 `json:"n"`
}

// RatchetState contains all fields the Double Ratchet needs to track.
type RatchetState struct {
	RootKey                 []byte            `json:"root_key"`
	DiffieHellmanPrivate    X25519Private     `json:"dh_priv"`
	DiffieHellmanPublic     X25519Public      `json:"dh_pub"`
	PeerDiffieHellmanPublic X25519Public      `json:"peer_dh_pub"`
	SendChainKey            []byte            `json:"send_ck,omitempty"`
	ReceiveChainKey         []byte            `json:"recv_ck,omitempty"`
	SendMessageIndex        uint32            `json:"ns"`
	ReceiveMessageIndex     uint32            `json:"nr"`
	PreviousChainLength     uint32            `json:"pn"`
	SkippedKeys             map[string][]byte `json:"skipped_keys"`
}

// PairwiseChannel persists the ratchet state for one remote device.
// Channels carry room-key shares, not chat text.
type PairwiseChannel struct {
	UserID          UserID       `json:"user_id"`
	DeviceID        DeviceID     `json:"device_id"`
	PeerIdentityKey X25519Public `json:"peer_identity_key"`
	State           RatchetState `json:"state"`
}

// PairwiseEnvelope is the to-device wire format for a pairwise-channel
// message. PreKey is present only on the first envelope of a channel.
type PairwiseEnvelope struct {
	SenderDevice DeviceID       `json:"sender_device"`
	TargetDevice DeviceID       `json:"target_device"`
	Header       RatchetHeader  `json:"header"`
	Cipher       []byte         `json:"cipher"`
	PreKey       *PreKeyMessage `json:"pre_key,omitempty"`
}
