package roomkeys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sotto/internal/domain"
	"sotto/internal/protocol/groupsession"
	"sotto/internal/protocol/ratchet"
	"sotto/internal/protocol/x3dh"
)

// ErrNotReady is returned when a crypto operation is attempted before
// Init has completed.
var ErrNotReady = errors.New("crypto session manager not initialised")

// EncryptRoomEvent encrypts a message body for the room under its group
// session, establishing or rotating the session first if needed. The
// session key is distributed to every known member device before this
// method returns the first ciphertext of a session, and the advanced
// chain state is persisted before the ciphertext is released.
func (s *Service) EncryptRoomEvent(ctx context.Context, room domain.RoomID, content domain.MessageContent) (domain.EncryptedContent, error) {
	if !s.Ready() {
		return domain.EncryptedContent{}, ErrNotReady
	}

	l := s.roomLock(room)
	l.Lock()
	defer l.Unlock()

	sess, err := s.ensureOutboundSession(ctx, room)
	if err != nil {
		return domain.EncryptedContent{}, err
	}

	plaintext, err := json.Marshal(content)
	if err != nil {
		return domain.EncryptedContent{}, err
	}

	ad := groupsession.AssociatedData(room, sess.ID, sess.SenderKey)
	index, ciphertext, err := groupsession.Encrypt(&sess, ad, plaintext)
	if err != nil {
		return domain.EncryptedContent{}, err
	}

	// Persist the advanced chain before the ciphertext can be sent, so
	// a crash cannot reuse a message key.
	if err := s.sessions.SaveOutbound(sess); err != nil {
		return domain.EncryptedContent{}, err
	}

	return domain.EncryptedContent{
		Algorithm:    domain.GroupSessionAlgorithm,
		SenderKey:    sess.SenderKey,
		SenderDevice: s.routing.DeviceID(),
		SessionID:    sess.ID,
		Index:        index,
		Ciphertext:   ciphertext,
	}, nil
}

// HandleMembershipChange marks the room's outbound session stale so the
// next send rotates. Existing inbound sessions are untouched: a departed
// member keeps what it already received but never sees a new session.
func (s *Service) HandleMembershipChange(room domain.RoomID) error {
	l := s.roomLock(room)
	l.Lock()
	defer l.Unlock()

	sess, ok, err := s.sessions.LoadOutbound(room)
	if err != nil || !ok {
		return err
	}
	if sess.Stale {
		return nil
	}
	sess.Stale = true
	s.logger.Debug("outbound session marked stale", "room", room, "session", sess.ID)
	return s.sessions.SaveOutbound(sess)
}

// ensureOutboundSession returns a live outbound session for the room,
// creating a fresh one when none exists or the current one is stale or
// over budget, and sharing its key with every member device that has
// not received it yet. Callers hold the room lock.
func (s *Service) ensureOutboundSession(ctx context.Context, room domain.RoomID) (domain.OutboundRoomSession, error) {
	sess, ok, err := s.sessions.LoadOutbound(room)
	if err != nil {
		return domain.OutboundRoomSession{}, err
	}
	if !ok || s.needsRotation(sess) {
		sess, err = groupsession.NewOutbound(room, s.id.XPub)
		if err != nil {
			return domain.OutboundRoomSession{}, err
		}
		sess.CreatedUTC = s.now().UTC().Unix()
		s.logger.Debug("new outbound session", "room", room, "session", sess.ID)
	}

	if err := s.shareSession(ctx, room, &sess); err != nil {
		return domain.OutboundRoomSession{}, err
	}

	if err := s.sessions.SaveOutbound(sess); err != nil {
		return domain.OutboundRoomSession{}, err
	}
	return sess, nil
}

func (s *Service) needsRotation(sess domain.OutboundRoomSession) bool {
	if sess.Stale {
		return true
	}
	if s.policy.MaxMessages > 0 && sess.Index >= s.policy.MaxMessages {
		return true
	}
	if s.policy.MaxAge > 0 {
		age := s.now().UTC().Sub(time.Unix(sess.CreatedUTC, 0))
		if age >= s.policy.MaxAge {
			return true
		}
	}
	return false
}

// shareSession distributes the session key to every joined member device
// not yet recorded in SharedWith. Any delivery failure aborts the send:
// partial distribution must not be followed by ciphertext those devices
// cannot read.
func (s *Service) shareSession(ctx context.Context, room domain.RoomID, sess *domain.OutboundRoomSession) error {
	members, err := s.routing.RoomMembers(ctx, room)
	if err != nil {
		return fmt.Errorf("room members: %w", err)
	}
	users := make([]domain.UserID, 0, len(members))
	for _, m := range members {
		if m.Membership == "join" || m.Membership == "invite" {
			users = append(users, m.UserID)
		}
	}

	deviceMap, err := s.routing.QueryDeviceKeys(ctx, users)
	if err != nil {
		return fmt.Errorf("query device keys: %w", err)
	}

	ownUser, ownDevice := s.routing.UserID(), s.routing.DeviceID()
	share := groupsession.Export(*sess)

	for user, devices := range deviceMap {
		for _, dev := range devices {
			if user == ownUser && dev.DeviceID == ownDevice {
				continue
			}
			key := deviceKey(user, dev.DeviceID)
			if sess.SharedWith[key] {
				continue
			}
			if err := s.sendKeyShare(ctx, user, dev, share); err != nil {
				return fmt.Errorf("share to %s/%s: %w", user, dev.DeviceID, err)
			}
			if sess.SharedWith == nil {
				sess.SharedWith = map[string]bool{}
			}
			sess.SharedWith[key] = true
		}
	}
	return nil
}

// sendKeyShare delivers one room-key share over the pairwise channel to
// a single device, opening the channel with an X3DH handshake if this is
// the first contact. Channel state is persisted before the envelope is
// handed to the transport.
func (s *Service) sendKeyShare(ctx context.Context, user domain.UserID, dev domain.DeviceKeys, share domain.RoomKeyShare) error {
	ch, ok, err := s.channels.LoadChannel(user, dev.DeviceID)
	if err != nil {
		return err
	}

	var preKey *domain.PreKeyMessage
	if !ok {
		bundle, err := s.routing.ClaimPreKey(ctx, user, dev.DeviceID)
		if err != nil {
			return fmt.Errorf("claim pre-key: %w", err)
		}
		if bundle.IdentityKey != dev.CurveKey {
			return fmt.Errorf("pre-key bundle identity key mismatch for %s/%s", user, dev.DeviceID)
		}
		root, spkID, opkID, ephPub, err := x3dh.InitiatorRoot(s.id, bundle)
		if err != nil {
			return fmt.Errorf("x3dh: %w", err)
		}
		state, err := ratchet.InitAsInitiator(root, bundle.IdentityKey)
		if err != nil {
			return err
		}
		ch = domain.PairwiseChannel{
			UserID:          user,
			DeviceID:        dev.DeviceID,
			PeerIdentityKey: bundle.IdentityKey,
			State:           state,
		}
		preKey = &domain.PreKeyMessage{
			InitiatorIdentityKey: s.id.XPub,
			EphemeralKey:         ephPub,
			SignedPreKeyID:       spkID,
			OneTimePreKeyID:      opkID,
		}
	}

	plaintext, err := json.Marshal(share)
	if err != nil {
		return err
	}
	ad := channelAD(s.id.XPub, ch.PeerIdentityKey)
	header, cipher, err := ratchet.Encrypt(&ch.State, ad, plaintext)
	if err != nil {
		return err
	}

	// Save before send: a replayed ratchet position is worse than a
	// dropped envelope.
	if err := s.channels.SaveChannel(ch); err != nil {
		return err
	}

	env := domain.PairwiseEnvelope{
		SenderDevice: s.routing.DeviceID(),
		TargetDevice: dev.DeviceID,
		Header:       header,
		Cipher:       cipher,
		PreKey:       preKey,
	}
	return s.routing.SendToDevice(ctx, user, dev.DeviceID, domain.EventTypeKeyShare, env)
}

// channelAD binds pairwise-channel ciphertexts to the two identity keys,
// ordered bytewise so both ends derive the same value.
func channelAD(a, b domain.X25519Public) []byte {
	lo, hi := a, b
	for i := range lo {
		if lo[i] != hi[i] {
			if lo[i] > hi[i] {
				lo, hi = hi, lo
			}
			break
		}
	}
	ad := make([]byte, 0, len("PC|")+64)
	ad = append(ad, "PC|"...)
	ad = append(ad, lo.Slice()...)
	ad = append(ad, hi.Slice()...)
	return ad
}
