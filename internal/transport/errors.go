package transport

import (
	"errors"
	"fmt"
)

// ServerError represents a structured error response from the routing
// server. Callers use errors.As to extract it:
//
//	var serverErr *transport.ServerError
//	if errors.As(err, &serverErr) {
//	    if serverErr.Code == transport.ErrCodeUnknownToken { ... }
//	}
type ServerError struct {
	// Code is the server error code (e.g. "FORBIDDEN", "UNKNOWN_TOKEN").
	Code string `json:"errcode"`
	// Message is the human-readable description from the server.
	Message string `json:"error"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("routing server: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Standard routing-server error codes.
const (
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeUnknownToken  = "UNKNOWN_TOKEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnknownCursor = "UNKNOWN_CURSOR"
	ErrCodeLimitExceeded = "LIMIT_EXCEEDED"
	ErrCodeUnknown       = "UNKNOWN"
)

// IsServerError checks whether err is a *ServerError with the given code.
func IsServerError(err error, code string) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Code == code
	}
	return false
}
