// Package events provides typed in-process publish/subscribe topics for
// engine callbacks. Consumers subscribe to the streams they care about;
// slow consumers lose their oldest events rather than stalling the sync
// loop.
package events

import (
	"sync"

	"sotto/internal/domain"
)

const subscriberBuffer = 64

// Topic is a fan-out channel registry for one event type.
type Topic[T any] struct {
	mu     sync.Mutex
	closed bool
	subs   map[int]chan T
	nextID int
}

// NewTopic returns an empty topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{subs: map[int]chan T{}}
}

// Subscribe registers a new consumer. The returned cancel function
// unregisters it and closes the channel; it is safe to call more than
// once.
func (t *Topic[T]) Subscribe() (<-chan T, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan T, subscriberBuffer)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if _, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers v to every subscriber. When a subscriber's buffer is
// full its oldest pending event is dropped to make room, so publishing
// never blocks.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	for _, ch := range t.subs {
		for {
			select {
			case ch <- v:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Close shuts the topic down and closes all subscriber channels.
// Subsequent publishes are discarded.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

// Bus groups the engine's event streams.
type Bus struct {
	// Messages carries every reconciled timeline message, own sends
	// included.
	Messages *Topic[domain.Message]
	// RoomUpdates carries recomputed room summaries.
	RoomUpdates *Topic[domain.Room]
	// Invites carries pending room invites awaiting user action.
	Invites *Topic[domain.RoomInvite]
	// Verifications carries unknown-device notices awaiting user action.
	Verifications *Topic[domain.VerificationRequest]
}

// NewBus returns a bus with all topics ready.
func NewBus() *Bus {
	return &Bus{
		Messages:      NewTopic[domain.Message](),
		RoomUpdates:   NewTopic[domain.Room](),
		Invites:       NewTopic[domain.RoomInvite](),
		Verifications: NewTopic[domain.VerificationRequest](),
	}
}

// Close shuts down every topic.
func (b *Bus) Close() {
	b.Messages.Close()
	b.RoomUpdates.Close()
	b.Invites.Close()
	b.Verifications.Close()
}
