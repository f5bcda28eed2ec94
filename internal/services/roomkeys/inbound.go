package roomkeys

import (
	"encoding/json"
	"errors"
	"fmt"

	"sotto/internal/domain"
	"sotto/internal/protocol/groupsession"
	"sotto/internal/protocol/ratchet"
	"sotto/internal/protocol/x3dh"
)

var (
	// ErrNoSession is returned when no inbound session exists for the
	// ciphertext's (room, session) pair. The key share may still be in
	// flight; the caller decides whether to surface a failure marker.
	ErrNoSession = errors.New("no inbound session for ciphertext")

	// ErrUnknownAlgorithm is returned for encrypted events carrying an
	// algorithm this engine does not implement.
	ErrUnknownAlgorithm = errors.New("unknown encryption algorithm")
)

// DecryptRoomEvent recovers the plaintext message content of a
// room.encrypted event. Decryption is attempted exactly once per event:
// on failure the inbound chain is left exactly as it was, so a later
// key share can make a retried event readable.
func (s *Service) DecryptRoomEvent(ev domain.Event) (domain.MessageContent, error) {
	if !s.Ready() {
		return domain.MessageContent{}, ErrNotReady
	}

	var enc domain.EncryptedContent
	if err := json.Unmarshal(ev.Content, &enc); err != nil {
		return domain.MessageContent{}, fmt.Errorf("malformed encrypted content: %w", err)
	}
	if enc.Algorithm != domain.GroupSessionAlgorithm {
		return domain.MessageContent{}, ErrUnknownAlgorithm
	}

	sess, ok, err := s.sessions.LoadInbound(ev.RoomID, enc.SessionID)
	if err != nil {
		return domain.MessageContent{}, err
	}
	if !ok {
		return domain.MessageContent{}, ErrNoSession
	}
	if sess.SenderKey != enc.SenderKey {
		return domain.MessageContent{}, fmt.Errorf("sender key does not match session %s", enc.SessionID)
	}

	ad := groupsession.AssociatedData(ev.RoomID, enc.SessionID, enc.SenderKey)
	plaintext, err := groupsession.Decrypt(&sess, ad, enc.SessionID, enc.Index, enc.Ciphertext)
	if err != nil {
		return domain.MessageContent{}, err
	}
	if err := s.sessions.SaveInbound(sess); err != nil {
		return domain.MessageContent{}, err
	}

	var content domain.MessageContent
	if err := json.Unmarshal(plaintext, &content); err != nil {
		return domain.MessageContent{}, fmt.Errorf("malformed plaintext: %w", err)
	}
	return content, nil
}

// HandleToDevice processes one direct-to-device event from a sync batch.
// Unknown event types are ignored.
func (s *Service) HandleToDevice(ev domain.ToDeviceEvent) error {
	if ev.Type != domain.EventTypeKeyShare {
		return nil
	}
	if !s.Ready() {
		return ErrNotReady
	}

	var env domain.PairwiseEnvelope
	if err := json.Unmarshal(ev.Content, &env); err != nil {
		return fmt.Errorf("malformed envelope: %w", err)
	}
	if env.TargetDevice != s.routing.DeviceID() {
		// Fanned out to the wrong device; not ours to open.
		return nil
	}

	ch, ok, err := s.channels.LoadChannel(ev.Sender, env.SenderDevice)
	if err != nil {
		return err
	}
	if !ok {
		if env.PreKey == nil {
			return fmt.Errorf("envelope from %s/%s without channel or pre-key message", ev.Sender, env.SenderDevice)
		}
		ch, err = s.bootstrapChannel(ev.Sender, env)
		if err != nil {
			return err
		}
	}

	ad := channelAD(s.id.XPub, ch.PeerIdentityKey)
	plaintext, err := ratchet.Decrypt(&ch.State, ad, env.Header, env.Cipher)
	if err != nil {
		return fmt.Errorf("channel decrypt: %w", err)
	}
	if err := s.channels.SaveChannel(ch); err != nil {
		return err
	}

	var share domain.RoomKeyShare
	if err := json.Unmarshal(plaintext, &share); err != nil {
		return fmt.Errorf("malformed key share: %w", err)
	}

	inbound := groupsession.Import(share)
	if err := s.sessions.SaveInbound(inbound); err != nil {
		return err
	}
	s.logger.Debug("imported inbound session",
		"room", share.RoomID, "session", share.SessionID, "first_index", share.Index)
	return nil
}

// bootstrapChannel derives the responder side of a new pairwise channel
// from the envelope's X3DH pre-key message.
func (s *Service) bootstrapChannel(sender domain.UserID, env domain.PairwiseEnvelope) (domain.PairwiseChannel, error) {
	pk := *env.PreKey

	spkPriv, _, _, ok, err := s.prekeys.LoadSignedPreKey(pk.SignedPreKeyID)
	if err != nil {
		return domain.PairwiseChannel{}, err
	}
	if !ok {
		return domain.PairwiseChannel{}, fmt.Errorf("unknown signed pre-key %s", pk.SignedPreKeyID)
	}

	var opkPriv *domain.X25519Private
	if pk.OneTimePreKeyID != "" {
		priv, _, found, err := s.prekeys.ConsumeOneTimePreKey(pk.OneTimePreKeyID)
		if err != nil {
			return domain.PairwiseChannel{}, err
		}
		if !found {
			return domain.PairwiseChannel{}, fmt.Errorf("one-time pre-key %s already consumed", pk.OneTimePreKeyID)
		}
		opkPriv = &priv
	}

	root, err := x3dh.ResponderRoot(s.id, spkPriv, opkPriv, pk)
	if err != nil {
		return domain.PairwiseChannel{}, fmt.Errorf("x3dh: %w", err)
	}

	var senderRatchetPub domain.X25519Public
	if len(env.Header.DiffieHellmanPublicKey) != len(senderRatchetPub) {
		return domain.PairwiseChannel{}, errors.New("malformed ratchet header public key")
	}
	copy(senderRatchetPub[:], env.Header.DiffieHellmanPublicKey)

	state, err := ratchet.InitAsResponder(root, s.id.XPriv, senderRatchetPub)
	if err != nil {
		return domain.PairwiseChannel{}, err
	}

	return domain.PairwiseChannel{
		UserID:          sender,
		DeviceID:        env.SenderDevice,
		PeerIdentityKey: pk.InitiatorIdentityKey,
		State:           state,
	}, nil
}
