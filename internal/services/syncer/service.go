package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"sotto/internal/domain"
	"sotto/internal/transport"
)

// ErrSessionExpired is returned by Run when the server rejects the
// access token. The loop cannot recover; the user must re-authenticate.
var ErrSessionExpired = errors.New("session expired: access token rejected")

const (
	defaultTimeoutMS = 30000
	initialBackoff   = time.Second
	maxBackoff       = 30 * time.Second
)

// Config wires the sync loop.
type Config struct {
	Routing domain.RoutingSession
	Cursor  domain.CursorStore

	// Apply folds one batch into engine state. It runs on the loop
	// goroutine; the cursor is persisted only after it returns.
	Apply func(*domain.SyncResponse)

	// ResetTransport is invoked before a backoff retry so a wedged
	// connection does not poison the next attempt. Optional.
	ResetTransport func()

	// TimeoutMS overrides the server-side hold time. The first poll of
	// a fresh session always uses 0 to fetch the baseline immediately.
	TimeoutMS int

	Logger *slog.Logger
}

// Service runs the long-poll loop.
type Service struct {
	routing        domain.RoutingSession
	cursor         domain.CursorStore
	apply          func(*domain.SyncResponse)
	resetTransport func()
	timeoutMS      int
	logger         *slog.Logger
}

// New builds the loop from its config.
func New(cfg Config) *Service {
	timeoutMS := cfg.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = defaultTimeoutMS
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		routing:        cfg.Routing,
		cursor:         cfg.Cursor,
		apply:          cfg.Apply,
		resetTransport: cfg.ResetTransport,
		timeoutMS:      timeoutMS,
		logger:         logger,
	}
}

// Run blocks, long-polling until ctx is cancelled or the session
// expires. It returns ctx.Err() on cancellation and ErrSessionExpired
// when the server rejects the token; any other return is a persistence
// failure.
func (s *Service) Run(ctx context.Context) error {
	since, err := s.cursor.LoadCursor()
	if err != nil {
		return err
	}

	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		timeout := s.timeoutMS
		if since == "" {
			// Baseline fetch: no hold, we want current state now.
			timeout = 0
		}

		resp, err := s.routing.Sync(ctx, since, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			var serverErr *transport.ServerError
			if errors.As(err, &serverErr) {
				switch serverErr.Code {
				case transport.ErrCodeUnknownToken:
					s.logger.Warn("sync halted: token rejected")
					return ErrSessionExpired
				case transport.ErrCodeUnknownCursor:
					s.logger.Warn("cursor no longer valid, requesting fresh baseline", "cursor", since)
					since = ""
					if err := s.cursor.SaveCursor(""); err != nil {
						return err
					}
					continue
				}
			}

			s.logger.Debug("sync failed, backing off", "err", err, "backoff", backoff)
			if s.resetTransport != nil {
				s.resetTransport()
			}
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = initialBackoff

		s.apply(resp)

		// Apply first, then persist: replaying a batch is safe, losing
		// one is not.
		since = resp.NextBatch
		if err := s.cursor.SaveCursor(since); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
