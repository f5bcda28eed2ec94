package x3dh

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"

	"sotto/internal/crypto"
	"sotto/internal/domain"
	"sotto/internal/util/memzero"
)

// hkdfInfo binds derived root keys to this protocol version.
var hkdfInfo = []byte("sotto/x3dh/v1")

var (
	// ErrBadSignedPreKey is returned when the signed pre-key signature
	// fails verification against the bundle's signing key.
	ErrBadSignedPreKey = errors.New("x3dh: signed pre-key signature invalid")
)

// InitiatorRoot runs X3DH as the initiator against a claimed pre-key
// bundle. It returns the root key, the identifiers of the signed and
// (optional) one-time pre-keys used, and the ephemeral public key the
// responder needs to derive the same root.
func InitiatorRoot(id domain.Identity, bundle domain.PreKeyBundle) (
	root []byte,
	spkID domain.PreKeyID,
	opkID domain.PreKeyID,
	ephemeralPub domain.X25519Public,
	err error,
) {
	if !crypto.VerifyEd25519(bundle.SigningKey, bundle.SignedPreKey.Slice(), bundle.SignedPreKeySignature) {
		err = ErrBadSignedPreKey
		return
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return
	}
	defer memzero.Zero(ephPriv[:])

	dh1, err := crypto.DH(id.XPriv, bundle.SignedPreKey) // DH(IKa, SPKb)
	if err != nil {
		return
	}
	dh2, err := crypto.DH(ephPriv, bundle.IdentityKey) // DH(EKa, IKb)
	if err != nil {
		return
	}
	dh3, err := crypto.DH(ephPriv, bundle.SignedPreKey) // DH(EKa, SPKb)
	if err != nil {
		return
	}

	transcript := make([]byte, 0, 32*4)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)

	if bundle.OneTimePreKey != nil {
		var dh4 [32]byte
		dh4, err = crypto.DH(ephPriv, bundle.OneTimePreKey.Pub) // DH(EKa, OPKb)
		if err != nil {
			return
		}
		transcript = append(transcript, dh4[:]...)
		memzero.Zero(dh4[:])
		opkID = bundle.OneTimePreKey.ID
	}

	root = deriveRoot(transcript)
	memzero.ZeroAll(transcript, dh1[:], dh2[:], dh3[:])

	return root, bundle.SignedPreKeyID, opkID, ephPub, nil
}

// ResponderRoot runs X3DH as the responder, deriving the same root key
// from a received PreKeyMessage. spkPriv is the private half of the
// signed pre-key named in the message; opkPriv is the consumed one-time
// pre-key private half, nil if the initiator used none.
func ResponderRoot(
	id domain.Identity,
	spkPriv domain.X25519Private,
	opkPriv *domain.X25519Private,
	msg domain.PreKeyMessage,
) ([]byte, error) {
	dh1, err := crypto.DH(spkPriv, msg.InitiatorIdentityKey) // DH(SPKb, IKa)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(id.XPriv, msg.EphemeralKey) // DH(IKb, EKa)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(spkPriv, msg.EphemeralKey) // DH(SPKb, EKa)
	if err != nil {
		return nil, err
	}

	transcript := make([]byte, 0, 32*4)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)

	if opkPriv != nil {
		dh4, err := crypto.DH(*opkPriv, msg.EphemeralKey) // DH(OPKb, EKa)
		if err != nil {
			return nil, err
		}
		transcript = append(transcript, dh4[:]...)
		memzero.Zero(dh4[:])
	}

	root := deriveRoot(transcript)
	memzero.ZeroAll(transcript, dh1[:], dh2[:], dh3[:])
	return root, nil
}

// VerifySignedPreKey checks a signed pre-key signature against a
// device's signing key.
func VerifySignedPreKey(signing domain.Ed25519Public, spk domain.X25519Public, sig []byte) bool {
	return crypto.VerifyEd25519(signing, spk.Slice(), sig)
}

func deriveRoot(transcript []byte) []byte {
	r := hkdf.New(sha256.New, transcript, nil, hkdfInfo)
	root := make([]byte, 32)
	_, _ = io.ReadFull(r, root)
	return root
}
