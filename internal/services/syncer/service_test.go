package syncer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sotto/internal/domain"
	"sotto/internal/services/syncer"
	"sotto/internal/store"
	"sotto/internal/transport"
)

// step describes one scripted Sync result.
type step struct {
	resp *domain.SyncResponse
	err  error
}

type scriptedSession struct {
	steps []step
	// calls records the since cursor of every Sync invocation.
	calls []string
	done  chan struct{}
}

func (s *scriptedSession) Sync(ctx context.Context, since string, _ int) (*domain.SyncResponse, error) {
	s.calls = append(s.calls, since)
	if len(s.steps) == 0 {
		// Script exhausted: signal the test and block until cancelled.
		if s.done != nil {
			close(s.done)
			s.done = nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.resp, st.err
}

func (s *scriptedSession) UserID() domain.UserID                         { return "@me:x" }
func (s *scriptedSession) DeviceID() domain.DeviceID                     { return "DEV" }
func (s *scriptedSession) WhoAmI(context.Context) (domain.UserID, error) { return "@me:x", nil }
func (s *scriptedSession) Logout(context.Context) error                  { return nil }
func (s *scriptedSession) CreateRoom(context.Context, domain.CreateRoomRequest) (domain.RoomID, error) {
	panic("unused")
}
func (s *scriptedSession) JoinRoom(context.Context, domain.RoomID) error { panic("unused") }
func (s *scriptedSession) InviteUser(context.Context, domain.RoomID, domain.UserID) error {
	panic("unused")
}
func (s *scriptedSession) JoinedRooms(context.Context) ([]domain.RoomID, error) { panic("unused") }
func (s *scriptedSession) RoomMembers(context.Context, domain.RoomID) ([]domain.RoomMember, error) {
	panic("unused")
}
func (s *scriptedSession) SendEvent(context.Context, domain.RoomID, string, any) (domain.EventID, error) {
	panic("unused")
}
func (s *scriptedSession) UploadMedia(context.Context, []byte, string) (string, error) {
	panic("unused")
}
func (s *scriptedSession) UploadKeys(context.Context, domain.KeyUpload) error { panic("unused") }
func (s *scriptedSession) QueryDeviceKeys(context.Context, []domain.UserID) (map[domain.UserID][]domain.DeviceKeys, error) {
	panic("unused")
}
func (s *scriptedSession) ClaimPreKey(context.Context, domain.UserID, domain.DeviceID) (domain.PreKeyBundle, error) {
	panic("unused")
}
func (s *scriptedSession) SendToDevice(context.Context, domain.UserID, domain.DeviceID, string, any) error {
	panic("unused")
}

var _ domain.RoutingSession = (*scriptedSession)(nil)

func newCursorStore(t *testing.T) *store.CursorFileStore {
	t.Helper()
	cs, err := store.NewCursorStore(t.TempDir())
	if err != nil {
		t.Fatalf("cursor store: %v", err)
	}
	return cs
}

func TestRun_AppliesBatchesAndAdvancesCursor(t *testing.T) {
	cs := newCursorStore(t)
	sess := &scriptedSession{
		steps: []step{
			{resp: &domain.SyncResponse{NextBatch: "s1"}},
			{resp: &domain.SyncResponse{NextBatch: "s2"}},
		},
		done: make(chan struct{}),
	}

	var applied []string
	svc := syncer.New(syncer.Config{
		Routing: sess,
		Cursor:  cs,
		Apply:   func(r *domain.SyncResponse) { applied = append(applied, r.NextBatch) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	select {
	case <-sess.done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop never exhausted script")
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	if len(applied) != 2 || applied[0] != "s1" || applied[1] != "s2" {
		t.Fatalf("applied batches: %v", applied)
	}
	// First poll has no cursor, then each poll carries the previous batch.
	if len(sess.calls) < 3 || sess.calls[0] != "" || sess.calls[1] != "s1" || sess.calls[2] != "s2" {
		t.Fatalf("sync cursors: %v", sess.calls)
	}
	got, err := cs.LoadCursor()
	if err != nil || got != "s2" {
		t.Fatalf("persisted cursor: %q %v", got, err)
	}
}

func TestRun_HaltsOnRejectedToken(t *testing.T) {
	cs := newCursorStore(t)
	sess := &scriptedSession{
		steps: []step{
			{err: &transport.ServerError{Code: transport.ErrCodeUnknownToken, StatusCode: 401}},
		},
	}

	svc := syncer.New(syncer.Config{
		Routing: sess,
		Cursor:  cs,
		Apply:   func(*domain.SyncResponse) { t.Fatal("batch applied after token rejection") },
	})

	err := svc.Run(context.Background())
	if !errors.Is(err, syncer.ErrSessionExpired) {
		t.Fatalf("want ErrSessionExpired, got %v", err)
	}
}

func TestRun_RecoversFromUnknownCursor(t *testing.T) {
	cs := newCursorStore(t)
	if err := cs.SaveCursor("stale"); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}
	sess := &scriptedSession{
		steps: []step{
			{err: &transport.ServerError{Code: transport.ErrCodeUnknownCursor, StatusCode: 400}},
			{resp: &domain.SyncResponse{NextBatch: "fresh"}},
		},
		done: make(chan struct{}),
	}

	var applied int
	svc := syncer.New(syncer.Config{
		Routing: sess,
		Cursor:  cs,
		Apply:   func(*domain.SyncResponse) { applied++ },
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	select {
	case <-sess.done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop never exhausted script")
	}
	cancel()
	<-errCh

	if applied != 1 {
		t.Fatalf("want 1 applied batch, got %d", applied)
	}
	// Stale cursor, then a baseline request with no cursor.
	if sess.calls[0] != "stale" || sess.calls[1] != "" {
		t.Fatalf("sync cursors: %v", sess.calls)
	}
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	cs := newCursorStore(t)
	sess := &scriptedSession{
		steps: []step{
			{err: errors.New("connection reset")},
			{resp: &domain.SyncResponse{NextBatch: "s1"}},
		},
		done: make(chan struct{}),
	}

	resets := 0
	var applied int
	svc := syncer.New(syncer.Config{
		Routing:        sess,
		Cursor:         cs,
		Apply:          func(*domain.SyncResponse) { applied++ },
		ResetTransport: func() { resets++ },
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	select {
	case <-sess.done:
	case <-time.After(10 * time.Second):
		t.Fatal("loop never exhausted script")
	}
	cancel()
	<-errCh

	if applied != 1 {
		t.Fatalf("want 1 applied batch after retry, got %d", applied)
	}
	if resets != 1 {
		t.Fatalf("want 1 transport reset, got %d", resets)
	}
}
