package client

import (
	"errors"
	"fmt"

	"sotto/internal/domain"
	"sotto/internal/services/syncer"
)

// UndecryptableBody is the visible placeholder for a message whose key
// material is not (or not yet) available.
const UndecryptableBody = "** Unable to decrypt this message **"

// ErrSessionExpired reports that the server rejected the access token.
// The session is permanently halted; the user must authenticate again.
var ErrSessionExpired = syncer.ErrSessionExpired

// ErrNotConnected is returned when an operation needs a live session
// and there is none.
var ErrNotConnected = errors.New("not connected")

// AuthError reports an authentication failure with the reason the
// server gave.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// DecryptionError reports that one event could not be decrypted. The
// event is preserved in the timeline with UndecryptableBody.
type DecryptionError struct {
	RoomID  domain.RoomID
	EventID domain.EventID
	Err     error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("cannot decrypt event %s in %s: %v", e.EventID, e.RoomID, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }
