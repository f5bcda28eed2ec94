package groupsession

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"sotto/internal/domain"
	"sotto/internal/util/memzero"
)

const (
	aeadKeySize = 32
	nonceSize   = chacha20poly1305.NonceSize

	// maxSkippedKeys caps the cached message keys per inbound session.
	maxSkippedKeys = 500
)

var (
	// ErrKeyNotAvailable is returned when a message index precedes the
	// point the session was shared at, or its key was already consumed.
	ErrKeyNotAvailable = errors.New("groupsession: message key not available")

	// ErrWrongSession is returned when ciphertext references a session
	// other than the one being used to open it.
	ErrWrongSession = errors.New("groupsession: session id mismatch")
)

// NewOutbound creates a fresh outbound session for a room. The caller
// sets SenderKey to the device's curve public key before sharing.
func NewOutbound(room domain.RoomID, senderKey domain.X25519Public) (domain.OutboundRoomSession, error) {
	chainKey := make([]byte, 32)
	if _, err := rand.Read(chainKey); err != nil {
		return domain.OutboundRoomSession{}, err
	}
	return domain.OutboundRoomSession{
		RoomID:     room,
		ID:         domain.SessionID(uuid.NewString()),
		ChainKey:   chainKey,
		Index:      0,
		SenderKey:  senderKey,
		CreatedUTC: time.Now().Unix(),
		SharedWith: make(map[string]bool),
	}, nil
}

// Export captures the outbound session's chain at its current index as a
// key share. A device importing the share can read messages from Index
// onward and nothing earlier.
func Export(s domain.OutboundRoomSession) domain.RoomKeyShare {
	chainKey := make([]byte, len(s.ChainKey))
	copy(chainKey, s.ChainKey)
	return domain.RoomKeyShare{
		RoomID:    s.RoomID,
		SessionID: s.ID,
		ChainKey:  chainKey,
		Index:     s.Index,
		SenderKey: s.SenderKey,
	}
}

// Import builds an inbound session from a received key share.
func Import(share domain.RoomKeyShare) domain.InboundRoomSession {
	chainKey := make([]byte, len(share.ChainKey))
	copy(chainKey, share.ChainKey)
	return domain.InboundRoomSession{
		RoomID:     share.RoomID,
		ID:         share.SessionID,
		SenderKey:  share.SenderKey,
		ChainKey:   chainKey,
		Index:      share.Index,
		FirstIndex: share.Index,
		Skipped:    make(map[uint32][]byte),
	}
}

// Encrypt seals plaintext under the next message key and advances the
// chain. It returns the index the ciphertext was sealed at.
func Encrypt(s *domain.OutboundRoomSession, ad, plaintext []byte) (uint32, []byte, error) {
	index := s.Index
	mk := messageKey(s.ChainKey)
	s.ChainKey = nextChainKey(s.ChainKey)
	s.Index++

	ct, err := seal(mk, index, ad, plaintext)
	memzero.Zero(mk)
	if err != nil {
		return 0, nil, err
	}
	return index, ct, nil
}

// Decrypt opens ciphertext sealed at the given index. The chain is
// ratcheted forward as needed; keys for indices passed over are cached
// (bounded) so out-of-order delivery within the session still decrypts.
func Decrypt(s *domain.InboundRoomSession, ad []byte, sessionID domain.SessionID, index uint32, ciphertext []byte) ([]byte, error) {
	if sessionID != s.ID {
		return nil, ErrWrongSession
	}
	if index < s.FirstIndex {
		return nil, ErrKeyNotAvailable
	}

	if index < s.Index {
		mk, ok := s.Skipped[index]
		if !ok {
			return nil, ErrKeyNotAvailable
		}
		pt, err := open(mk, index, ad, ciphertext)
		if err != nil {
			return nil, err
		}
		delete(s.Skipped, index)
		memzero.Zero(mk)
		return pt, nil
	}

	// Ratchet forward to the requested index, caching intermediates.
	for s.Index < index {
		if s.Skipped == nil {
			s.Skipped = make(map[uint32][]byte)
		}
		if len(s.Skipped) >= maxSkippedKeys {
			dropOldest(s.Skipped)
		}
		s.Skipped[s.Index] = messageKey(s.ChainKey)
		s.ChainKey = nextChainKey(s.ChainKey)
		s.Index++
	}

	mk := messageKey(s.ChainKey)
	pt, err := open(mk, index, ad, ciphertext)
	memzero.Zero(mk)
	if err != nil {
		return nil, err
	}
	s.ChainKey = nextChainKey(s.ChainKey)
	s.Index++
	return pt, nil
}

// AssociatedData canonically binds a ciphertext to its room, session,
// and sender key. Both sides must derive it identically.
func AssociatedData(room domain.RoomID, id domain.SessionID, senderKey domain.X25519Public) []byte {
	out := make([]byte, 0, len(room)+1+len(id)+1+32)
	out = append(out, room...)
	out = append(out, 0)
	out = append(out, id...)
	out = append(out, 0)
	out = append(out, senderKey[:]...)
	return out
}

// --- helpers ---

func seal(mk []byte, index uint32, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], index)
	return aead.Seal(nil, nonce, plaintext, ad), nil
}

func open(mk []byte, index uint32, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], index)
	return aead.Open(nil, nonce, ciphertext, ad)
}

// nextChainKey and messageKey advance the sender-key chain with
// domain-separated HKDF labels, mirroring the pairwise ratchet's KDFs.
func nextChainKey(ck []byte) []byte {
	r := hkdf.New(sha256.New, ck, nil, []byte("GS|ck"))
	next := make([]byte, 32)
	_, _ = io.ReadFull(r, next)
	return next
}

func messageKey(ck []byte) []byte {
	r := hkdf.New(sha256.New, ck, nil, []byte("GS|mk"))
	mk := make([]byte, 32)
	_, _ = io.ReadFull(r, mk)
	return mk
}

func dropOldest(skipped map[uint32][]byte) {
	var oldest uint32
	first := true
	for k := range skipped {
		if first || k < oldest {
			oldest = k
			first = false
		}
	}
	if !first {
		memzero.Zero(skipped[oldest])
		delete(skipped, oldest)
	}
}
