package agent_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"sotto/internal/agent"
	"sotto/internal/domain"
)

type fakeSender struct {
	sent   []string
	marked []domain.RoomID
}

func (f *fakeSender) SendText(_ context.Context, room domain.RoomID, body string) (domain.EventID, error) {
	f.sent = append(f.sent, body)
	return domain.EventID(fmt.Sprintf("$%d", len(f.sent))), nil
}

func (f *fakeSender) MarkRead(room domain.RoomID) { f.marked = append(f.marked, room) }

type scriptedResponder struct {
	replies []string
	errs    []error
	seen    [][]agent.Turn
}

func (r *scriptedResponder) Respond(_ context.Context, turns []agent.Turn) (string, error) {
	r.seen = append(r.seen, append([]agent.Turn(nil), turns...))
	i := len(r.seen) - 1
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	reply := ""
	if i < len(r.replies) {
		reply = r.replies[i]
	}
	return reply, err
}

func runLoop(t *testing.T, loop *agent.Loop, msgs []domain.Message) {
	t.Helper()
	ch := make(chan domain.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background(), ch) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not drain")
	}
}

func textMsg(room domain.RoomID, body string, own bool) domain.Message {
	return domain.Message{
		ID:     domain.EventID("$" + body),
		RoomID: room,
		Body:   body,
		Kind:   domain.KindText,
		IsOwn:  own,
	}
}

func TestLoop_RepliesAndMarksRead(t *testing.T) {
	sender := &fakeSender{}
	responder := &scriptedResponder{replies: []string{"hi there"}}
	loop := agent.NewLoop(responder, sender, nil)

	runLoop(t, loop, []domain.Message{textMsg("!r:x", "hello", false)})

	if len(sender.sent) != 1 || sender.sent[0] != "hi there" {
		t.Fatalf("sent: %v", sender.sent)
	}
	if len(sender.marked) != 1 || sender.marked[0] != "!r:x" {
		t.Fatalf("marked: %v", sender.marked)
	}
}

func TestLoop_ApologyOnResponderFailure(t *testing.T) {
	sender := &fakeSender{}
	responder := &scriptedResponder{errs: []error{errors.New("model down")}}
	loop := agent.NewLoop(responder, sender, nil)

	runLoop(t, loop, []domain.Message{textMsg("!r:x", "hello", false)})

	if len(sender.sent) != 1 {
		t.Fatalf("sent: %v", sender.sent)
	}
	if !strings.Contains(sender.sent[0], "Sorry") {
		t.Fatalf("want apology, got %q", sender.sent[0])
	}
}

func TestLoop_IgnoresOwnAndNonText(t *testing.T) {
	sender := &fakeSender{}
	responder := &scriptedResponder{replies: []string{"reply"}}
	loop := agent.NewLoop(responder, sender, nil)

	own := textMsg("!r:x", "my own echo", true)
	media := domain.Message{ID: "$img", RoomID: "!r:x", Kind: domain.KindImage, Body: "pic.png"}
	runLoop(t, loop, []domain.Message{own, media})

	if len(sender.sent) != 0 {
		t.Fatalf("replied to own or media message: %v", sender.sent)
	}
}

func TestLoop_HistoryBoundedPerRoom(t *testing.T) {
	sender := &fakeSender{}
	responder := &scriptedResponder{}
	loop := agent.NewLoop(responder, sender, nil)

	var msgs []domain.Message
	for i := 0; i < 30; i++ {
		msgs = append(msgs, textMsg("!a:x", fmt.Sprintf("a%d", i), false))
	}
	msgs = append(msgs, textMsg("!b:x", "other room", false))
	runLoop(t, loop, msgs)

	last := responder.seen[29]
	if len(last) > 20 {
		t.Fatalf("history unbounded: %d turns", len(last))
	}
	// The oldest turns must have been evicted.
	if last[0].Content == "a0" {
		t.Fatal("oldest turn not evicted")
	}

	// Rooms do not share history.
	other := responder.seen[30]
	if len(other) != 1 || other[0].Content != "other room" {
		t.Fatalf("cross-room history leak: %+v", other)
	}
}
