package shop

import "errors"

// Error taxonomy. Handlers match these with errors.Is and turn them
// into a message scoped to the acting user; none of them crash the
// update loop.
var (
	ErrValidation   = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("not allowed")
	ErrInvalidState = errors.New("action not allowed in current state")
	ErrResource     = errors.New("gateway resource unavailable")
	ErrTimeout      = errors.New("timed out waiting for input")
)
