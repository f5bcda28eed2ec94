package events_test

import (
	"testing"

	"sotto/internal/domain"
	"sotto/internal/events"
)

func TestTopic_FanOut(t *testing.T) {
	topic := events.NewTopic[int]()
	a, cancelA := topic.Subscribe()
	b, cancelB := topic.Subscribe()
	defer cancelA()
	defer cancelB()

	topic.Publish(42)

	if got := <-a; got != 42 {
		t.Fatalf("subscriber a: got %d", got)
	}
	if got := <-b; got != 42 {
		t.Fatalf("subscriber b: got %d", got)
	}
}

func TestTopic_CancelStopsDelivery(t *testing.T) {
	topic := events.NewTopic[int]()
	ch, cancel := topic.Subscribe()

	cancel()
	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
	// Cancelling twice must not panic.
	cancel()

	topic.Publish(1)
}

func TestTopic_SlowConsumerDropsOldest(t *testing.T) {
	topic := events.NewTopic[int]()
	ch, cancel := topic.Subscribe()
	defer cancel()

	// Overfill the buffer without draining.
	for i := 0; i < 100; i++ {
		topic.Publish(i)
	}

	// The newest event must survive; the oldest must be gone.
	first := <-ch
	if first == 0 {
		t.Fatal("oldest event should have been dropped")
	}
	var last int
	for {
		select {
		case v := <-ch:
			last = v
		default:
			if last != 99 {
				t.Fatalf("newest event lost, saw %d", last)
			}
			return
		}
	}
}

func TestTopic_CloseClosesSubscribers(t *testing.T) {
	topic := events.NewTopic[string]()
	ch, _ := topic.Subscribe()

	topic.Close()
	if _, open := <-ch; open {
		t.Fatal("channel open after topic close")
	}

	// Publishing and subscribing after close must not panic.
	topic.Publish("late")
	late, cancel := topic.Subscribe()
	defer cancel()
	if _, open := <-late; open {
		t.Fatal("post-close subscription not closed")
	}
}

func TestBus_Topics(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	msgs, cancel := bus.Messages.Subscribe()
	defer cancel()

	bus.Messages.Publish(domain.Message{ID: "$1", Body: "hi"})
	got := <-msgs
	if got.ID != "$1" {
		t.Fatalf("unexpected message: %+v", got)
	}

	invs, cancelInvs := bus.Invites.Subscribe()
	defer cancelInvs()

	bus.Invites.Publish(domain.RoomInvite{RoomID: "!r:x", Inviter: "@bob:x"})
	inv := <-invs
	if inv.RoomID != "!r:x" || inv.Inviter != "@bob:x" {
		t.Fatalf("unexpected invite: %+v", inv)
	}
}
