package types

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is all zeros (unset).
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key (ed25519.PrivateKey layout).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// Identity holds the device's long-term X25519 and Ed25519 key pairs.
// It is created lazily on first crypto initialization and persists for
// the lifetime of the installation.
type Identity struct {
	XPub   X25519Public   `json:"xpub"`
	XPriv  X25519Private  `json:"xpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
	EdPriv Ed25519Private `json:"edpriv"`
}

// DeviceKeys is the public half of a device identity as published to
// (and queried from) the routing server. Signature covers CurveKey
// under the device's signing key.
type DeviceKeys struct {
	UserID     UserID        `json:"user_id"`
	DeviceID   DeviceID      `json:"device_id"`
	CurveKey   X25519Public  `json:"curve_key"`
	SigningKey Ed25519Public `json:"signing_key"`
	Signature  []byte        `json:"signature"`
}

// OneTimePreKeyPair is the full (private+public) one-time pre-key stored locally.
type OneTimePreKeyPair struct {
	ID   PreKeyID      `json:"id"`
	Priv X25519Private `json:"priv"`
	Pub  X25519Public  `json:"pub"`
}

// OneTimePreKeyPublic is only the public half (published to the server).
type OneTimePreKeyPublic struct {
	ID  PreKeyID     `json:"id"`
	Pub X25519Public `json:"pub"`
}

// PreKeyBundle is what the server hands out when another device wants to
// open a pairwise channel to this one: the device keys, the current
// signed pre-key, and at most one claimed one-time pre-key.
type PreKeyBundle struct {
	UserID                UserID               `json:"user_id"`
	DeviceID              DeviceID             `json:"device_id"`
	IdentityKey           X25519Public         `json:"identity_key"`
	SigningKey            Ed25519Public        `json:"signing_key"`
	SignedPreKeyID        PreKeyID             `json:"signed_pre_key_id"`
	SignedPreKey          X25519Public         `json:"signed_pre_key"`
	SignedPreKeySignature []byte               `json:"signed_pre_key_signature"`
	OneTimePreKey         *OneTimePreKeyPublic `json:"one_time_pre_key,omitempty"`
}

// PreKeyMessage carries the X3DH handshake parameters on the first
// envelope of a pairwise channel so the responder can derive the root key.
type PreKeyMessage struct {
	InitiatorIdentityKey X25519Public `json:"initiator_identity_key"`
	EphemeralKey         X25519Public `json:"ephemeral_key"`
	SignedPreKeyID       PreKeyID     `json:"signed_pre_key_id"`
	OneTimePreKeyID      PreKeyID     `json:"one_time_pre_key_id,omitempty"`
}
