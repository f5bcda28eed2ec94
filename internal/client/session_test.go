package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"sotto/internal/client"
	"sotto/internal/domain"
)

const testPass = "Correct-Horse-Battery-9"

type fakeIdentity struct {
	user   domain.UserID
	device domain.DeviceID
}

// fakeServer is a minimal in-memory routing server speaking the
// /client/v1 contract, enough to drive the facade end to end.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	tokens   map[string]fakeIdentity
	revoked  map[string]bool
	uploads  map[string]domain.KeyUpload
	devices  map[domain.UserID][]domain.DeviceKeys
	members  map[domain.RoomID][]domain.RoomMember
	syncs    map[string][]*domain.SyncResponse
	calls    []string
	nextRoom int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{
		t:       t,
		tokens:  map[string]fakeIdentity{},
		revoked: map[string]bool{},
		uploads: map[string]domain.KeyUpload{},
		devices: map[domain.UserID][]domain.DeviceKeys{},
		members: map[domain.RoomID][]domain.RoomMember{},
		syncs:   map[string][]*domain.SyncResponse{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) URL() string { return f.srv.URL }

func (f *fakeServer) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeServer) recordedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// enqueueSync schedules one batch for the given user's next poll.
func (f *fakeServer) enqueueSync(user domain.UserID, resp *domain.SyncResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, id := range f.tokens {
		if id.user == user {
			f.syncs[token] = append(f.syncs[token], resp)
		}
	}
}

func (f *fakeServer) setMembers(room domain.RoomID, users ...domain.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[room] = nil
	for _, u := range users {
		f.members[room] = append(f.members[room], domain.RoomMember{UserID: u, Membership: "join"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"errcode": code, "error": code})
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/client/v1/")

	if path == "login" {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			writeError(w, http.StatusForbidden, "FORBIDDEN")
			return
		}
		user := domain.UserID("@" + req.Username + ":test")
		device := domain.DeviceID("DEV-" + req.Username)
		token := "tok-" + req.Username
		f.mu.Lock()
		f.tokens[token] = fakeIdentity{user: user, device: device}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id": user, "device_id": device, "access_token": token,
		})
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.mu.Lock()
	id, ok := f.tokens[token]
	revoked := f.revoked[token]
	f.mu.Unlock()
	if !ok || revoked {
		writeError(w, http.StatusUnauthorized, "UNKNOWN_TOKEN")
		return
	}

	switch {
	case path == "account/whoami":
		writeJSON(w, http.StatusOK, map[string]any{"user_id": id.user, "device_id": id.device})

	case path == "logout":
		f.mu.Lock()
		f.revoked[token] = true
		f.mu.Unlock()
		f.record("logout")
		writeJSON(w, http.StatusOK, map[string]any{})

	case path == "keys/upload":
		var up domain.KeyUpload
		_ = json.NewDecoder(r.Body).Decode(&up)
		f.mu.Lock()
		f.uploads[string(id.user)+"|"+string(id.device)] = up
		f.devices[id.user] = []domain.DeviceKeys{up.DeviceKeys}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{})

	case path == "keys/query":
		var req struct {
			UserIDs []domain.UserID `json:"user_ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := map[domain.UserID][]domain.DeviceKeys{}
		f.mu.Lock()
		for _, u := range req.UserIDs {
			out[u] = f.devices[u]
		}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"devices": out})

	case path == "keys/claim":
		var req struct {
			UserID   domain.UserID   `json:"user_id"`
			DeviceID domain.DeviceID `json:"device_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		up, ok := f.uploads[string(req.UserID)+"|"+string(req.DeviceID)]
		f.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND")
			return
		}
		bundle := domain.PreKeyBundle{
			UserID:                req.UserID,
			DeviceID:              req.DeviceID,
			IdentityKey:           up.DeviceKeys.CurveKey,
			SigningKey:            up.DeviceKeys.SigningKey,
			SignedPreKeyID:        up.SignedPreKeyID,
			SignedPreKey:          up.SignedPreKey,
			SignedPreKeySignature: up.SignedPreKeySignature,
		}
		writeJSON(w, http.StatusOK, map[string]any{"bundle": bundle})

	case path == "rooms/create":
		var req domain.CreateRoomRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.nextRoom++
		room := domain.RoomID(fmt.Sprintf("!room%d:test", f.nextRoom))
		f.mu.Unlock()
		f.record(fmt.Sprintf("create_room %s encrypted=%v", room, req.Encrypted))
		writeJSON(w, http.StatusOK, map[string]any{"room_id": room})

	case strings.HasPrefix(path, "sync"):
		f.mu.Lock()
		queue := f.syncs[token]
		var resp *domain.SyncResponse
		if len(queue) > 0 {
			resp = queue[0]
			f.syncs[token] = queue[1:]
		}
		f.mu.Unlock()
		if resp == nil {
			// Idle poll: hold briefly, return an empty batch.
			time.Sleep(20 * time.Millisecond)
			resp = &domain.SyncResponse{NextBatch: "idle"}
		}
		writeJSON(w, http.StatusOK, resp)

	case strings.HasPrefix(path, "send_to_device/"):
		f.record("send_to_device")
		writeJSON(w, http.StatusOK, map[string]any{})

	case strings.Contains(path, "/send/"):
		parts := strings.Split(path, "/")
		// rooms/{room}/send/{type}/{txn}
		eventType, _ := url.PathUnescape(parts[3])
		f.record("send " + eventType)
		writeJSON(w, http.StatusOK, map[string]any{"event_id": "$evt-" + parts[4]})

	case strings.HasSuffix(path, "/join"):
		parts := strings.Split(path, "/")
		room, _ := url.PathUnescape(parts[1])
		f.record("join " + room)
		writeJSON(w, http.StatusOK, map[string]any{"room_id": room})

	case strings.HasSuffix(path, "/invite"):
		parts := strings.Split(path, "/")
		room, _ := url.PathUnescape(parts[1])
		f.record("invite " + room)
		writeJSON(w, http.StatusOK, map[string]any{})

	case strings.HasSuffix(path, "/members"):
		parts := strings.Split(path, "/")
		room, _ := url.PathUnescape(parts[1])
		f.mu.Lock()
		members := append([]domain.RoomMember(nil), f.members[domain.RoomID(room)]...)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"members": members})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND")
	}
}

func newTestClient(t *testing.T, f *fakeServer) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{
		ServerURL:  f.URL(),
		DataDir:    t.TempDir(),
		Passphrase: testPass,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func authenticate(t *testing.T, c *client.Client, username string) *client.Session {
	t.Helper()
	sess, err := c.Authenticate(context.Background(), username, "secret")
	if err != nil {
		t.Fatalf("authenticate %s: %v", username, err)
	}
	t.Cleanup(sess.Close)
	return sess
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func stateKey(s string) *string { return &s }

// encryptedRoomBatch is a baseline batch establishing an encrypted room
// with the given members.
func encryptedRoomBatch(room domain.RoomID, cursor string, users ...domain.UserID) *domain.SyncResponse {
	var state []domain.Event
	for i, u := range users {
		content, _ := json.Marshal(domain.MemberContent{Membership: "join"})
		state = append(state, domain.Event{
			ID: domain.EventID(fmt.Sprintf("$m%d", i)), Type: domain.EventTypeMember,
			Sender: u, RoomID: room, StateKey: stateKey(u.String()), Content: content,
		})
	}
	encContent, _ := json.Marshal(domain.EncryptionContent{Algorithm: domain.GroupSessionAlgorithm})
	state = append(state, domain.Event{
		ID: "$enc", Type: domain.EventTypeEncryption, RoomID: room, Content: encContent,
	})
	return &domain.SyncResponse{
		NextBatch: cursor,
		Rooms: domain.RoomsSection{
			Join: map[domain.RoomID]domain.JoinedRoomSync{
				room: {State: domain.StateSection{Events: state}},
			},
		},
	}
}

func TestAuthenticate_BadPassword(t *testing.T) {
	f := newFakeServer(t)
	c := newTestClient(t, f)

	_, err := c.Authenticate(context.Background(), "alice", "wrong")
	var authErr *client.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("want AuthError, got %v", err)
	}
}

func TestSendText_EncryptedRoom_SharesKeysFirst(t *testing.T) {
	f := newFakeServer(t)
	room := domain.RoomID("!r1:test")

	// Bob's device must exist so alice has someone to share with.
	authenticate(t, newTestClient(t, f), "bob")

	alice := authenticate(t, newTestClient(t, f), "alice")
	if !alice.EncryptionReady() {
		t.Fatal("encryption not ready after authenticate")
	}

	f.setMembers(room, "@alice:test", "@bob:test")
	f.enqueueSync("@alice:test", encryptedRoomBatch(room, "s1", "@alice:test", "@bob:test"))
	waitFor(t, "room state", func() bool {
		return len(alice.Rooms()) == 1 && alice.Rooms()[0].IsEncrypted
	})

	eventID, err := alice.SendText(context.Background(), room, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if eventID == "" {
		t.Fatal("empty event id")
	}

	var sawShare bool
	for _, call := range f.recordedCalls() {
		switch call {
		case "send_to_device":
			sawShare = true
		case "send " + domain.EventTypeEncrypted:
			if !sawShare {
				t.Fatal("ciphertext sent before key share")
			}
		case "send " + domain.EventTypeMessage:
			t.Fatal("plaintext sent to encrypted room")
		}
	}
	if !sawShare {
		t.Fatal("no key share dispatched")
	}
}

func TestUndecryptableEvent_GetsMarker(t *testing.T) {
	f := newFakeServer(t)
	room := domain.RoomID("!r1:test")

	alice := authenticate(t, newTestClient(t, f), "alice")

	msgs, cancel := alice.Events().Messages.Subscribe()
	defer cancel()

	batch := encryptedRoomBatch(room, "s1", "@alice:test", "@bob:test")
	encrypted, _ := json.Marshal(domain.EncryptedContent{
		Algorithm:  domain.GroupSessionAlgorithm,
		SessionID:  "ghost-session",
		Index:      0,
		Ciphertext: []byte("junk"),
	})
	join := batch.Rooms.Join[room]
	join.Timeline = domain.TimelineSection{Events: []domain.Event{{
		ID: "$cipher", Type: domain.EventTypeEncrypted, Sender: "@bob:test",
		RoomID: room, OriginServerTS: 1000, Content: encrypted,
	}}}
	batch.Rooms.Join[room] = join
	f.enqueueSync("@alice:test", batch)

	select {
	case got := <-msgs:
		if got.Body != client.UndecryptableBody {
			t.Fatalf("want marker body, got %q", got.Body)
		}
		if !got.WasEncrypted {
			t.Fatal("marker message not flagged encrypted")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message surfaced")
	}

	// The event stays in the timeline, exactly once.
	timeline := alice.Messages(room)
	if len(timeline) != 1 || timeline[0].ID != "$cipher" {
		t.Fatalf("unexpected timeline: %+v", timeline)
	}
}

func countCreates(f *fakeServer) int {
	creates := 0
	for _, call := range f.recordedCalls() {
		if strings.HasPrefix(call, "create_room") {
			creates++
		}
	}
	return creates
}

func TestResolveDirectRoom_Idempotent(t *testing.T) {
	f := newFakeServer(t)

	alice := authenticate(t, newTestClient(t, f), "alice")

	room, err := alice.ResolveDirectRoom(context.Background(), "@bob:test", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// A second resolve before any membership has synced must reuse the
	// room just created, not create another.
	again, err := alice.ResolveDirectRoom(context.Background(), "@bob:test", true)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again != room {
		t.Fatalf("direct room changed: %s then %s", room, again)
	}

	// The encryption flag only matters at creation; an existing room
	// matches regardless.
	plain, err := alice.ResolveDirectRoom(context.Background(), "@bob:test", false)
	if err != nil {
		t.Fatalf("third resolve: %v", err)
	}
	if plain != room {
		t.Fatalf("direct room changed on flag flip: %s then %s", room, plain)
	}

	if got := countCreates(f); got != 1 {
		t.Fatalf("want 1 room creation, got %d", got)
	}
}

func TestResolveDirectRoom_SurvivesRestart(t *testing.T) {
	f := newFakeServer(t)
	c := newTestClient(t, f)

	alice := authenticate(t, c, "alice")
	room, err := alice.ResolveDirectRoom(context.Background(), "@bob:test", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	alice.Close()

	resumed, err := c.Resume(context.Background(), "@alice:test", "DEV-alice")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	t.Cleanup(resumed.Close)

	again, err := resumed.ResolveDirectRoom(context.Background(), "@bob:test", true)
	if err != nil {
		t.Fatalf("resolve after resume: %v", err)
	}
	if again != room {
		t.Fatalf("direct room lost across restart: %s then %s", room, again)
	}
	if got := countCreates(f); got != 1 {
		t.Fatalf("want 1 room creation, got %d", got)
	}
}

func TestResolveDirectRoom_CreationEncryptionFlag(t *testing.T) {
	f := newFakeServer(t)

	alice := authenticate(t, newTestClient(t, f), "alice")

	room, err := alice.ResolveDirectRoom(context.Background(), "@bob:test", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	want := fmt.Sprintf("create_room %s encrypted=false", room)
	found := false
	for _, call := range f.recordedCalls() {
		if call == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("creation did not honour the flag: %v", f.recordedCalls())
	}
}

func TestInvite_SurfacedAndJoinable(t *testing.T) {
	f := newFakeServer(t)
	room := domain.RoomID("!party:test")

	alice := authenticate(t, newTestClient(t, f), "alice")

	invites, cancel := alice.Events().Invites.Subscribe()
	defer cancel()

	content, _ := json.Marshal(domain.MemberContent{Membership: "invite"})
	f.enqueueSync("@alice:test", &domain.SyncResponse{
		NextBatch: "s1",
		Rooms: domain.RoomsSection{
			Invite: map[domain.RoomID]domain.InvitedRoomSync{
				room: {InviteState: domain.StateSection{Events: []domain.Event{{
					ID: "$inv", Type: domain.EventTypeMember, Sender: "@bob:test",
					RoomID: room, StateKey: stateKey("@alice:test"), Content: content,
				}}}},
			},
		},
	})

	var inv domain.RoomInvite
	select {
	case inv = <-invites:
	case <-time.After(5 * time.Second):
		t.Fatal("invite not surfaced")
	}
	if inv.RoomID != room || inv.Inviter != "@bob:test" {
		t.Fatalf("unexpected invite: %+v", inv)
	}

	if err := alice.JoinRoom(context.Background(), room); err != nil {
		t.Fatalf("join: %v", err)
	}

	joined := false
	for _, call := range f.recordedCalls() {
		if call == "join "+room.String() {
			joined = true
		}
	}
	if !joined {
		t.Fatal("join never reached the server")
	}
}

func TestLeaveSection_FoldsIntoSummary(t *testing.T) {
	f := newFakeServer(t)

	alice := authenticate(t, newTestClient(t, f), "alice")

	room, err := alice.ResolveDirectRoom(context.Background(), "@bob:test", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	f.enqueueSync("@alice:test", encryptedRoomBatch(room, "s1", "@alice:test", "@bob:test"))
	waitFor(t, "direct room baseline", func() bool {
		sum := alice.Rooms()
		return len(sum) == 1 && sum[0].DisplayName == "@bob:test"
	})

	leaveContent, _ := json.Marshal(domain.MemberContent{Membership: "leave"})
	f.enqueueSync("@alice:test", &domain.SyncResponse{
		NextBatch: "s2",
		Rooms: domain.RoomsSection{
			Leave: map[domain.RoomID]domain.LeftRoomSync{
				room: {State: domain.StateSection{Events: []domain.Event{{
					ID: "$gone", Type: domain.EventTypeMember, Sender: "@bob:test",
					RoomID: room, StateKey: stateKey("@bob:test"), Content: leaveContent,
				}}}},
			},
		},
	})

	// Bob gone: the direct summary loses his name and falls back to
	// the room ID.
	waitFor(t, "leave folded", func() bool {
		sum := alice.Rooms()
		return len(sum) == 1 && sum[0].DisplayName == room.String()
	})
}

func TestLogout_DestroysSession(t *testing.T) {
	f := newFakeServer(t)
	c := newTestClient(t, f)

	alice := authenticate(t, c, "alice")
	if err := alice.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := alice.SendText(context.Background(), "!r:test", "hi"); !errors.Is(err, client.ErrNotConnected) {
		t.Fatalf("want ErrNotConnected after logout, got %v", err)
	}

	// The credential is gone: resume must fail.
	if _, err := c.Resume(context.Background(), "@alice:test", "DEV-alice"); err == nil {
		t.Fatal("resumed a logged-out session")
	}
}

func TestResume_ValidAndExpiredToken(t *testing.T) {
	f := newFakeServer(t)
	c := newTestClient(t, f)

	first := authenticate(t, c, "alice")
	first.Close()

	resumed, err := c.Resume(context.Background(), "@alice:test", "DEV-alice")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.UserID() != "@alice:test" {
		t.Fatalf("resumed wrong user: %s", resumed.UserID())
	}
	resumed.Close()

	// Server forgets the token; the next resume must report expiry.
	f.mu.Lock()
	f.revoked["tok-alice"] = true
	f.mu.Unlock()

	if _, err := c.Resume(context.Background(), "@alice:test", "DEV-alice"); !errors.Is(err, client.ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}
}
