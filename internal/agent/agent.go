package agent

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"sotto/internal/domain"
)

const (
	// maxHistoryTurns bounds the conversation context handed to the
	// responder, per room.
	maxHistoryTurns = 20

	// apology is sent verbatim when the responder fails; the failure
	// itself goes to the log, never to the room.
	apology = "Sorry, I couldn't process that. Please try again."
)

// Turn is one entry of conversation context.
type Turn struct {
	Role    string `json:"role"` // "user" or "agent"
	Content string `json:"content"`
}

// Responder produces a reply to a conversation. Implementations must be
// safe for concurrent calls.
type Responder interface {
	Respond(ctx context.Context, turns []Turn) (string, error)
}

// Sender is the slice of the session facade the loop needs.
type Sender interface {
	SendText(ctx context.Context, room domain.RoomID, body string) (domain.EventID, error)
	MarkRead(room domain.RoomID)
}

// Loop consumes a message stream and replies in each room.
type Loop struct {
	responder Responder
	sender    Sender
	logger    *slog.Logger

	mu      sync.Mutex
	history map[domain.RoomID][]Turn
}

// NewLoop builds an agent loop.
func NewLoop(responder Responder, sender Sender, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loop{
		responder: responder,
		sender:    sender,
		logger:    logger,
		history:   map[domain.RoomID][]Turn{},
	}
}

// Run consumes messages until the channel closes or ctx is cancelled.
// Own messages extend history but are never replied to.
func (l *Loop) Run(ctx context.Context, messages <-chan domain.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			l.handle(ctx, msg)
		}
	}
}

func (l *Loop) handle(ctx context.Context, msg domain.Message) {
	if msg.Kind != domain.KindText || msg.Body == "" {
		return
	}
	if msg.IsOwn {
		// Our own sends echo back through sync; that echo is the one
		// place agent turns enter history, so replies are not counted
		// twice.
		l.remember(msg.RoomID, Turn{Role: "agent", Content: msg.Body})
		return
	}

	l.remember(msg.RoomID, Turn{Role: "user", Content: msg.Body})
	l.sender.MarkRead(msg.RoomID)

	reply, err := l.responder.Respond(ctx, l.turns(msg.RoomID))
	if err != nil {
		l.logger.Warn("responder failed", "room", msg.RoomID, "err", err)
		reply = apology
	}

	if _, err := l.sender.SendText(ctx, msg.RoomID, reply); err != nil {
		l.logger.Error("reply send failed", "room", msg.RoomID, "err", err)
	}
}

func (l *Loop) remember(room domain.RoomID, turn Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := append(l.history[room], turn)
	if len(h) > maxHistoryTurns {
		h = h[len(h)-maxHistoryTurns:]
	}
	l.history[room] = h
}

func (l *Loop) turns(room domain.RoomID) []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Turn(nil), l.history[room]...)
}
