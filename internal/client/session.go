package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"sotto/internal/crypto"
	"sotto/internal/domain"
	"sotto/internal/events"
	"sotto/internal/services/identity"
	"sotto/internal/services/roomkeys"
	"sotto/internal/services/syncer"
	"sotto/internal/services/timeline"
	"sotto/internal/store"
	"sotto/internal/transport"
)

// Session is a live connection: the sync loop, crypto manager, and
// reconciled timeline for one authenticated device.
type Session struct {
	routing   *transport.Session
	creds     domain.CredentialStore
	keys      *roomkeys.Service
	timeline  *timeline.Service
	directs   domain.DirectRoomStore
	bus       *events.Bus
	logger    *slog.Logger
	encrypted bool // crypto manager initialised

	cancel    context.CancelFunc
	done      chan struct{}
	runErr    error
	expired   atomic.Bool
	closed    atomic.Bool
	firstSync chan struct{}
	syncOnce  sync.Once

	// notified tracks devices already surfaced as verification
	// requests, so the bus is not spammed per message.
	notifyMu sync.Mutex
	notified map[string]bool
}

func (c *Client) startSession(ctx context.Context, tsess *transport.Session, creds domain.CredentialStore) (*Session, error) {
	dir := c.accountDir(tsess.UserID(), tsess.DeviceID())

	identityStore, err := store.NewIdentityStore(dir)
	if err != nil {
		return nil, err
	}
	prekeyStore, err := store.NewPreKeyStore(dir, c.cfg.Passphrase)
	if err != nil {
		return nil, err
	}
	channelStore, err := store.NewChannelStore(dir, c.cfg.Passphrase)
	if err != nil {
		return nil, err
	}
	sessionStore, err := store.NewRoomSessionStore(dir, c.cfg.Passphrase)
	if err != nil {
		return nil, err
	}
	trustStore, err := store.NewTrustStore(dir)
	if err != nil {
		return nil, err
	}
	cursorStore, err := store.NewCursorStore(dir)
	if err != nil {
		return nil, err
	}
	directStore, err := store.NewDirectRoomStore(dir)
	if err != nil {
		return nil, err
	}

	keys := roomkeys.New(roomkeys.Config{
		Passphrase: c.cfg.Passphrase,
		Identity:   identity.New(identityStore),
		PreKeys:    prekeyStore,
		Channels:   channelStore,
		Sessions:   sessionStore,
		Trust:      trustStore,
		Routing:    tsess,
		Policy:     c.cfg.Rotation,
		Logger:     c.logger,
	})

	s := &Session{
		routing:   tsess,
		creds:     creds,
		keys:      keys,
		timeline:  timeline.New(tsess.UserID()),
		directs:   directStore,
		bus:       events.NewBus(),
		logger:    c.logger.With("user", tsess.UserID(), "device", tsess.DeviceID()),
		done:      make(chan struct{}),
		firstSync: make(chan struct{}),
		notified:  map[string]bool{},
	}

	// Seed directness from disk so summaries are right before the first
	// sync lands.
	if rooms, err := directStore.DirectRooms(); err == nil {
		for _, room := range rooms {
			s.timeline.SetDirect(room, true)
		}
	}

	// Crypto failure degrades to plaintext rather than blocking the
	// session: encrypted rooms become read-opaque and send-disabled.
	if err := keys.Init(ctx); err != nil {
		s.logger.Warn("encryption unavailable, running in plaintext mode", "err", err)
	} else {
		s.encrypted = true
	}

	loop := syncer.New(syncer.Config{
		Routing:        tsess,
		Cursor:         cursorStore,
		Apply:          s.applyBatch,
		ResetTransport: tsess.CloseIdleConnections,
		Logger:         s.logger,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		err := loop.Run(runCtx)
		if errors.Is(err, syncer.ErrSessionExpired) {
			s.expired.Store(true)
			_ = s.creds.Clear()
			s.logger.Warn("session expired, sync halted")
		}
		s.runErr = err
	}()

	return s, nil
}

// UserID returns the authenticated user.
func (s *Session) UserID() domain.UserID { return s.routing.UserID() }

// DeviceID returns this device's identifier.
func (s *Session) DeviceID() domain.DeviceID { return s.routing.DeviceID() }

// Events exposes the session's typed event streams.
func (s *Session) Events() *events.Bus { return s.bus }

// EncryptionReady reports whether the crypto manager initialised. When
// false the session operates in degraded plaintext mode.
func (s *Session) EncryptionReady() bool { return s.encrypted && s.keys.Ready() }

// Done is closed when the sync loop halts.
func (s *Session) Done() <-chan struct{} { return s.done }

// Synced is closed once the first sync batch has been applied, so
// callers can wait for the baseline before reading rooms.
func (s *Session) Synced() <-chan struct{} { return s.firstSync }

// Err returns the sync loop's exit error once Done is closed.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.runErr
	default:
		return nil
	}
}

func (s *Session) usable() error {
	if s.closed.Load() {
		return ErrNotConnected
	}
	if s.expired.Load() {
		return ErrSessionExpired
	}
	return nil
}

// SendText sends one text message to a room, encrypting it when the
// room requires encryption. The send is attempted at most once; a
// transport error means the caller decides whether to resend.
func (s *Session) SendText(ctx context.Context, room domain.RoomID, body string) (domain.EventID, error) {
	return s.sendMessage(ctx, room, domain.MessageContent{MsgType: domain.KindText, Body: body})
}

// SendMedia uploads a blob and sends a message referencing it.
func (s *Session) SendMedia(ctx context.Context, room domain.RoomID, kind domain.MessageKind, data []byte, filename string) (domain.EventID, error) {
	if err := s.usable(); err != nil {
		return "", err
	}
	uri, err := s.routing.UploadMedia(ctx, data, filename)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	return s.sendMessage(ctx, room, domain.MessageContent{
		MsgType:  kind,
		Body:     filename,
		URL:      uri,
		Filename: filename,
	})
}

func (s *Session) sendMessage(ctx context.Context, room domain.RoomID, content domain.MessageContent) (domain.EventID, error) {
	if err := s.usable(); err != nil {
		return "", err
	}

	if s.timeline.IsEncrypted(room) {
		if !s.EncryptionReady() {
			return "", fmt.Errorf("room %s requires encryption: %w", room, roomkeys.ErrNotReady)
		}
		enc, err := s.keys.EncryptRoomEvent(ctx, room, content)
		if err != nil {
			return "", err
		}
		return s.routing.SendEvent(ctx, room, domain.EventTypeEncrypted, enc)
	}
	return s.routing.SendEvent(ctx, room, domain.EventTypeMessage, content)
}

// ResolveDirectRoom returns the direct room shared with peer, creating
// one only when none exists. The persisted peer-to-room record is
// checked first, so repeated calls return the same room even before
// membership has synced and after a restart. encrypted applies only
// when a new room is created; an existing room matches either way.
func (s *Session) ResolveDirectRoom(ctx context.Context, peer domain.UserID, encrypted bool) (domain.RoomID, error) {
	if err := s.usable(); err != nil {
		return "", err
	}

	if room, ok, err := s.directs.LoadDirectRoom(peer); err == nil && ok {
		s.timeline.SetDirect(room, true)
		return room, nil
	}

	if room, ok := s.timeline.FindDirectRoom(peer); ok {
		if err := s.directs.SaveDirectRoom(peer, room); err != nil {
			s.logger.Warn("direct room record not saved", "peer", peer, "err", err)
		}
		return room, nil
	}

	room, err := s.routing.CreateRoom(ctx, domain.CreateRoomRequest{
		Invite:    []domain.UserID{peer},
		Direct:    true,
		Encrypted: encrypted,
	})
	if err != nil {
		return "", fmt.Errorf("create direct room: %w", err)
	}
	s.timeline.SetDirect(room, true)
	if err := s.directs.SaveDirectRoom(peer, room); err != nil {
		s.logger.Warn("direct room record not saved", "peer", peer, "err", err)
	}
	return room, nil
}

// JoinRoom accepts an invite (or joins a public room) by ID.
func (s *Session) JoinRoom(ctx context.Context, room domain.RoomID) error {
	if err := s.usable(); err != nil {
		return err
	}
	return s.routing.JoinRoom(ctx, room)
}

// InviteUser invites another user into a room this device is joined to.
func (s *Session) InviteUser(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	if err := s.usable(); err != nil {
		return err
	}
	return s.routing.InviteUser(ctx, room, user)
}

// Rooms returns current summaries for every known room.
func (s *Session) Rooms() []domain.Room { return s.timeline.Rooms() }

// Messages returns the reconciled timeline of one room.
func (s *Session) Messages(room domain.RoomID) []domain.Message {
	return s.timeline.Messages(room)
}

// MarkRead clears the room's unread count.
func (s *Session) MarkRead(room domain.RoomID) {
	s.timeline.MarkRead(room)
	if sum, ok := s.timeline.Summary(room); ok {
		s.bus.RoomUpdates.Publish(sum)
	}
}

// DeviceFingerprint returns this device's identity fingerprint. ok is
// false in degraded plaintext mode.
func (s *Session) DeviceFingerprint() (string, bool) {
	if !s.EncryptionReady() {
		return "", false
	}
	return s.keys.DeviceFingerprint(), true
}

// RemoteFingerprint fetches the fingerprint of another device for
// out-of-band comparison.
func (s *Session) RemoteFingerprint(ctx context.Context, user domain.UserID, device domain.DeviceID) (string, error) {
	if err := s.usable(); err != nil {
		return "", err
	}
	return s.keys.RemoteFingerprint(ctx, user, device)
}

// VerifyDevice marks a device trusted after the user compared
// fingerprints. Idempotent.
func (s *Session) VerifyDevice(ctx context.Context, user domain.UserID, device domain.DeviceID) error {
	if err := s.usable(); err != nil {
		return err
	}
	return s.keys.VerifyDevice(ctx, user, device)
}

// Logout revokes the token server-side, destroys the stored credential,
// and shuts the session down. The server call is best-effort: a token
// the server already forgot still logs out locally.
func (s *Session) Logout(ctx context.Context) error {
	if s.closed.Swap(true) {
		return ErrNotConnected
	}

	if err := s.routing.Logout(ctx); err != nil && !transport.IsServerError(err, transport.ErrCodeUnknownToken) {
		s.logger.Warn("server-side logout failed", "err", err)
	}
	err := s.creds.Clear()
	s.shutdown()
	return err
}

// Close stops the sync loop without revoking the credential, so the
// session can be resumed later.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.shutdown()
}

func (s *Session) shutdown() {
	s.cancel()
	<-s.done
	s.routing.CloseIdleConnections()
	s.bus.Close()
}

// applyBatch folds one sync batch into engine state. To-device events
// run first so key shares land before the ciphertexts that need them.
func (s *Session) applyBatch(resp *domain.SyncResponse) {
	defer s.syncOnce.Do(func() { close(s.firstSync) })

	for _, ev := range resp.ToDevice.Events {
		if err := s.keys.HandleToDevice(ev); err != nil {
			s.logger.Warn("to-device event dropped", "type", ev.Type, "err", err)
		}
	}

	for roomID, roomSync := range resp.Rooms.Join {
		for _, ev := range roomSync.State.Events {
			s.applyStateEvent(roomID, ev)
		}
		for _, ev := range roomSync.Timeline.Events {
			s.applyTimelineEvent(roomID, ev)
		}
		if sum, ok := s.timeline.Summary(roomID); ok {
			s.bus.RoomUpdates.Publish(sum)
		}
	}

	for roomID, roomSync := range resp.Rooms.Invite {
		s.applyInvite(roomID, roomSync)
	}

	// Left rooms still fold their final state and timeline, so the
	// summary reflects the departure.
	for roomID, roomSync := range resp.Rooms.Leave {
		for _, ev := range roomSync.State.Events {
			s.applyStateEvent(roomID, ev)
		}
		for _, ev := range roomSync.Timeline.Events {
			s.applyTimelineEvent(roomID, ev)
		}
		if sum, ok := s.timeline.Summary(roomID); ok {
			s.bus.RoomUpdates.Publish(sum)
		}
	}
}

// applyInvite surfaces a pending invite once. The inviter is whoever
// sent the member event naming this user.
func (s *Session) applyInvite(roomID domain.RoomID, roomSync domain.InvitedRoomSync) {
	var inviter domain.UserID
	found := false
	for _, ev := range roomSync.InviteState.Events {
		if ev.Type != domain.EventTypeMember || ev.StateKey == nil || domain.UserID(*ev.StateKey) != s.routing.UserID() {
			continue
		}
		var c domain.MemberContent
		if json.Unmarshal(ev.Content, &c) != nil || c.Membership != "invite" {
			continue
		}
		inviter = ev.Sender
		found = true
	}
	if !found {
		return
	}

	key := "invite|" + roomID.String()
	s.notifyMu.Lock()
	seen := s.notified[key]
	s.notified[key] = true
	s.notifyMu.Unlock()
	if seen {
		return
	}

	s.bus.Invites.Publish(domain.RoomInvite{RoomID: roomID, Inviter: inviter})
}

func (s *Session) applyStateEvent(roomID domain.RoomID, ev domain.Event) {
	content, ok := parseStateContent(ev)
	if !ok {
		return
	}
	if s.timeline.ApplyState(roomID, ev, content) {
		// Joined-member set changed: the outbound session may no
		// longer match the audience.
		if err := s.keys.HandleMembershipChange(roomID); err != nil {
			s.logger.Warn("membership rotation failed", "room", roomID, "err", err)
		}
	}
}

func parseStateContent(ev domain.Event) (any, bool) {
	switch ev.Type {
	case domain.EventTypeMember:
		var c domain.MemberContent
		if json.Unmarshal(ev.Content, &c) == nil {
			return c, true
		}
	case domain.EventTypeName:
		var c domain.NameContent
		if json.Unmarshal(ev.Content, &c) == nil {
			return c, true
		}
	case domain.EventTypeTopic:
		var c domain.TopicContent
		if json.Unmarshal(ev.Content, &c) == nil {
			return c, true
		}
	case domain.EventTypeEncryption:
		var c domain.EncryptionContent
		if json.Unmarshal(ev.Content, &c) == nil {
			return c, true
		}
	}
	return nil, false
}

func (s *Session) applyTimelineEvent(roomID domain.RoomID, ev domain.Event) {
	switch ev.Type {
	case domain.EventTypeMessage:
		var content domain.MessageContent
		if err := json.Unmarshal(ev.Content, &content); err != nil {
			s.logger.Warn("malformed message event", "event", ev.ID, "err", err)
			return
		}
		s.addMessage(roomID, ev, content, false, domain.DeviceID(""))

	case domain.EventTypeEncrypted:
		var enc domain.EncryptedContent
		if err := json.Unmarshal(ev.Content, &enc); err != nil {
			s.logger.Warn("malformed encrypted event", "event", ev.ID, "err", err)
			return
		}
		s.maybeRequestVerification(ev.Sender, enc)

		content, err := s.keys.DecryptRoomEvent(ev)
		if err != nil {
			derr := &DecryptionError{RoomID: roomID, EventID: ev.ID, Err: err}
			s.logger.Debug("undecryptable event", "err", derr)
			content = domain.MessageContent{MsgType: domain.KindNotice, Body: UndecryptableBody}
		}
		s.addMessage(roomID, ev, content, true, enc.SenderDevice)

	case domain.EventTypeMember, domain.EventTypeName, domain.EventTypeTopic, domain.EventTypeEncryption:
		// State events can ride the timeline section too.
		s.applyStateEvent(roomID, ev)
	}
}

func (s *Session) addMessage(roomID domain.RoomID, ev domain.Event, content domain.MessageContent, wasEncrypted bool, senderDevice domain.DeviceID) {
	verified := false
	if wasEncrypted && senderDevice != "" {
		verified, _ = s.keys.IsVerified(ev.Sender, senderDevice)
	}

	msg := domain.Message{
		ID:                ev.ID,
		RoomID:            roomID,
		Sender:            ev.Sender,
		SenderDisplayName: s.timeline.DisplayNameOf(roomID, ev.Sender),
		Body:              content.Body,
		Timestamp:         ev.OriginServerTS,
		Kind:              content.MsgType,
		IsOwn:             ev.Sender == s.routing.UserID(),
		WasEncrypted:      wasEncrypted,
		IsVerifiedSender:  verified,
	}
	if msg.Kind == "" {
		msg.Kind = domain.KindText
	}
	if s.timeline.AddMessage(msg) {
		s.bus.Messages.Publish(msg)
	}
}

// maybeRequestVerification surfaces a first-contact notice for an
// unverified sender device, once per device per session.
func (s *Session) maybeRequestVerification(sender domain.UserID, enc domain.EncryptedContent) {
	if sender == s.routing.UserID() && enc.SenderDevice == s.routing.DeviceID() {
		return
	}
	key := sender.String() + "|" + enc.SenderDevice.String()

	s.notifyMu.Lock()
	seen := s.notified[key]
	s.notified[key] = true
	s.notifyMu.Unlock()
	if seen {
		return
	}

	if verified, err := s.keys.IsVerified(sender, enc.SenderDevice); err != nil || verified {
		return
	}
	s.bus.Verifications.Publish(domain.VerificationRequest{
		UserID:      sender,
		DeviceID:    enc.SenderDevice,
		Fingerprint: domain.Fingerprint(crypto.Fingerprint(enc.SenderKey.Slice())),
	})
}
