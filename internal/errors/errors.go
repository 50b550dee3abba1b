package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrMuted - actor is muted until a timestamp (user-facing rejection)
	ErrMuted = errors.New("actor muted")

	// ErrRateLimited - actor is on cooldown (user-facing rejection)
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput - invalid input (show validation error to the actor)
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransient - transient infra error (store/transport unavailable)
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error (generic message to the actor)
	ErrInternal = errors.New("internal error")
)
