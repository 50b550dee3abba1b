package errors

import (
	"fmt"
	"time"
)

// Rejection is an expected, user-facing refusal. It travels as a value so the
// dispatcher can always turn it into exactly one human-readable reply; it is
// never logged as an error.
type Rejection struct {
	Message string
	RetryAt time.Time

	cause error
}

func (r *Rejection) Error() string {
	return r.Message
}

// Unwrap exposes the category sentinel so errors.Is works on rejections.
func (r *Rejection) Unwrap() error {
	return r.cause
}

// Muted builds the rejection for an actor muted until the given time. The
// timestamp is surfaced verbatim to the actor.
func Muted(until time.Time) *Rejection {
	return &Rejection{
		Message: fmt.Sprintf("you are muted until %s", until.UTC().Format(time.RFC1123)),
		RetryAt: until,
		cause:   ErrMuted,
	}
}

// RateLimited builds the rejection for an actor on cooldown.
func RateLimited(retryAt time.Time) *Rejection {
	return &Rejection{
		Message: fmt.Sprintf("slow down, try again in %s", time.Until(retryAt).Round(time.Second)),
		RetryAt: retryAt,
		cause:   ErrRateLimited,
	}
}
