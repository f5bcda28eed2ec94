package ratchet

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"sotto/internal/crypto"
	"sotto/internal/domain"
	"sotto/internal/util/memzero"
)

const (
	aeadKeySize = 32
	nonceSize   = chacha20poly1305.NonceSize

	// maxSkippedKeys caps the skipped-message-key cache per channel.
	maxSkippedKeys = 1000
)

var (
	// ErrSkippedKeyNotFound is returned when a message references a
	// chain position whose key was never derived or already consumed.
	ErrSkippedKeyNotFound = errors.New("ratchet: skipped message key not found")

	errChainUninitialised = errors.New("ratchet: chain key is uninitialised")
)

// InitAsInitiator seeds the sending chain from the X3DH root key using a
// fresh ratchet key pair and the peer's identity public key.
func InitAsInitiator(root []byte, peerIdentity domain.X25519Public) (domain.RatchetState, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}
	dh, err := crypto.DH(priv, peerIdentity)
	if err != nil {
		return domain.RatchetState{}, err
	}
	newRoot, sendCK := kdfRoot(root, dh[:])
	memzero.Zero(dh[:])

	return domain.RatchetState{
		RootKey:              newRoot,
		DiffieHellmanPrivate: priv,
		DiffieHellmanPublic:  pub,
		// Placeholder until the first remote ratchet pub arrives.
		PeerDiffieHellmanPublic: peerIdentity,
		SendChainKey:            sendCK,
		SkippedKeys:             make(map[string][]byte),
	}, nil
}

// InitAsResponder seeds the receiving chain from the X3DH root key using
// our identity private key and the sender's current ratchet public key.
func InitAsResponder(root []byte, ourIdentityPriv domain.X25519Private, senderRatchetPub domain.X25519Public) (domain.RatchetState, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}
	dh, err := crypto.DH(ourIdentityPriv, senderRatchetPub)
	if err != nil {
		return domain.RatchetState{}, err
	}
	newRoot, recvCK := kdfRoot(root, dh[:])
	memzero.Zero(dh[:])

	return domain.RatchetState{
		RootKey:                 newRoot,
		DiffieHellmanPrivate:    priv,
		DiffieHellmanPublic:     pub,
		PeerDiffieHellmanPublic: senderRatchetPub,
		ReceiveChainKey:         recvCK,
		SkippedKeys:             make(map[string][]byte),
	}, nil
}

// Encrypt produces a header and ciphertext, auto-stepping the DH ratchet
// on the first send after responding.
func Encrypt(st *domain.RatchetState, ad, plaintext []byte) (domain.RatchetHeader, []byte, error) {
	// Responder's first send: perform a DH ratchet step to create the
	// sending chain.
	if len(st.SendChainKey) == 0 {
		st.PreviousChainLength = st.SendMessageIndex
		st.SendMessageIndex = 0

		newPriv, newPub, err := crypto.GenerateX25519()
		if err != nil {
			return domain.RatchetHeader{}, nil, err
		}
		dh, err := crypto.DH(newPriv, st.PeerDiffieHellmanPublic)
		if err != nil {
			return domain.RatchetHeader{}, nil, err
		}
		newRoot, sendCK := kdfRoot(st.RootKey, dh[:])
		memzero.Zero(dh[:])

		st.RootKey = newRoot
		st.DiffieHellmanPrivate, st.DiffieHellmanPublic = newPriv, newPub
		st.SendChainKey = sendCK
	}

	mk, err := nextSendKey(st)
	if err != nil {
		return domain.RatchetHeader{}, nil, err
	}
	header := domain.RatchetHeader{
		DiffieHellmanPublicKey: st.DiffieHellmanPublic.Slice(),
		PreviousChainLength:    st.PreviousChainLength,
		MessageIndex:           st.SendMessageIndex,
	}

	ct, err := seal(mk, header, ad, plaintext)
	memzero.Zero(mk)
	if err != nil {
		return domain.RatchetHeader{}, nil, err
	}
	st.SendMessageIndex++
	return header, ct, nil
}

// Decrypt handles skipped keys, performs a DH ratchet step on new remote
// public keys, then opens the message.
func Decrypt(st *domain.RatchetState, ad []byte, header domain.RatchetHeader, ciphertext []byte) ([]byte, error) {
	// Same remote DH pub: this chain, possibly a skipped position.
	if equal32(st.PeerDiffieHellmanPublic[:], header.DiffieHellmanPublicKey) {
		skipUntil(st, header.MessageIndex)
		keyID := skippedKeyID(st.PeerDiffieHellmanPublic, header.MessageIndex)
		if mk, ok := st.SkippedKeys[keyID]; ok {
			delete(st.SkippedKeys, keyID)
			pt, err := open(mk, header, ad, ciphertext)
			memzero.Zero(mk)
			if err != nil {
				return nil, err
			}
			st.ReceiveMessageIndex = header.MessageIndex + 1
			return pt, nil
		}
	}

	// New remote DH pub: finish the old receiving chain, then advance
	// both chains from the new root.
	if !equal32(st.PeerDiffieHellmanPublic[:], header.DiffieHellmanPublicKey) {
		skipUntil(st, header.PreviousChainLength)

		var newPeer domain.X25519Public
		copy(newPeer[:], header.DiffieHellmanPublicKey)

		dh, err := crypto.DH(st.DiffieHellmanPrivate, newPeer)
		if err != nil {
			return nil, err
		}
		rootAfterRecv, recvCK := kdfRoot(st.RootKey, dh[:])
		memzero.Zero(dh[:])

		newPriv, newPub, err := crypto.GenerateX25519()
		if err != nil {
			return nil, err
		}
		dh2, err := crypto.DH(newPriv, newPeer)
		if err != nil {
			return nil, err
		}
		rootAfterSend, sendCK := kdfRoot(rootAfterRecv, dh2[:])
		memzero.Zero(dh2[:])

		st.PreviousChainLength = st.SendMessageIndex
		st.SendMessageIndex, st.ReceiveMessageIndex = 0, 0
		st.RootKey = rootAfterSend
		st.DiffieHellmanPrivate, st.DiffieHellmanPublic = newPriv, newPub
		st.PeerDiffieHellmanPublic = newPeer
		st.SendChainKey, st.ReceiveChainKey = sendCK, recvCK
	}

	mk, err := nextReceiveKey(st)
	if err != nil {
		return nil, err
	}
	pt, err := open(mk, header, ad, ciphertext)
	memzero.Zero(mk)
	if err != nil {
		return nil, err
	}
	st.ReceiveMessageIndex++
	return pt, nil
}

// --- helpers ---

func seal(mk []byte, header domain.RatchetHeader, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.MessageIndex)
	return aead.Seal(nil, nonce, plaintext, append(ad, headerBytes(header)...)), nil
}

func open(mk []byte, header domain.RatchetHeader, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.MessageIndex)
	return aead.Open(nil, nonce, ciphertext, append(ad, headerBytes(header)...))
}

func headerBytes(h domain.RatchetHeader) []byte {
	out := make([]byte, 0, len(h.DiffieHellmanPublicKey)+8)
	out = append(out, h.DiffieHellmanPublicKey...)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.PreviousChainLength)
	out = append(out, b[:]...)
	binary.BigEndian.PutUint32(b[:], h.MessageIndex)
	out = append(out, b[:]...)
	return out
}

// kdfRoot advances the root key and derives a fresh chain key.
func kdfRoot(root, dh []byte) (newRoot, chainKey []byte) {
	r := hkdf.New(sha256.New, dh, root, []byte("DR|rk"))
	newRoot = make([]byte, 32)
	chainKey = make([]byte, 32)
	_, _ = io.ReadFull(r, newRoot)
	_, _ = io.ReadFull(r, chainKey)
	return
}

// kdfChain advances a message chain and derives one message key.
func kdfChain(ck []byte) (nextCK, mk []byte) {
	r := hkdf.New(sha256.New, ck, nil, []byte("DR|ck"))
	nextCK = make([]byte, 32)
	mk = make([]byte, 32)
	_, _ = io.ReadFull(r, nextCK)
	_, _ = io.ReadFull(r, mk)
	return
}

func nextSendKey(st *domain.RatchetState) ([]byte, error) {
	if len(st.SendChainKey) == 0 {
		return nil, errChainUninitialised
	}
	nextCK, mk := kdfChain(st.SendChainKey)
	st.SendChainKey = nextCK
	return mk, nil
}

func nextReceiveKey(st *domain.RatchetState) ([]byte, error) {
	if len(st.ReceiveChainKey) == 0 {
		return nil, errChainUninitialised
	}
	nextCK, mk := kdfChain(st.ReceiveChainKey)
	st.ReceiveChainKey = nextCK
	return mk, nil
}

func skippedKeyID(peer domain.X25519Public, n uint32) string {
	b := make([]byte, 32+4)
	copy(b, peer[:])
	binary.BigEndian.PutUint32(b[32:], n)
	return string(b)
}

// skipUntil derives and stores message keys up to pn with a hard cap.
func skipUntil(st *domain.RatchetState, pn uint32) {
	for st.ReceiveMessageIndex < pn {
		mk, err := nextReceiveKey(st)
		if err != nil {
			return
		}
		if len(st.SkippedKeys) >= maxSkippedKeys {
			for k := range st.SkippedKeys {
				delete(st.SkippedKeys, k)
				break
			}
		}
		st.SkippedKeys[skippedKeyID(st.PeerDiffieHellmanPublic, st.ReceiveMessageIndex)] = mk
		st.ReceiveMessageIndex++
	}
}

func equal32(a, b []byte) bool {
	if len(a) != 32 || len(b) != 32 {
		return false
	}
	var v byte
	for i := 0; i < 32; i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
