package gameerrors

import "errors"

// Session sentinel errors. Shared by the session and ws packages
// to avoid circular imports.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionClosed      = errors.New("session closed")
	ErrInvalidResumeToken = errors.New("invalid resume token")
)
