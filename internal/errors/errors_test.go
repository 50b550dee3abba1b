package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMapErrorCategories(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"not found", fmt.Errorf("chat not found"), ErrNotFound},
		{"missing", fmt.Errorf("channel does not exist"), ErrNotFound},
		{"rate limited upstream", fmt.Errorf("429: too many requests"), ErrTransient},
		{"timeout", fmt.Errorf("request timeout exceeded"), ErrTransient},
		{"network", fmt.Errorf("connection refused"), ErrTransient},
		{"invalid", fmt.Errorf("bad request: unknown chat id"), ErrInvalidInput},
		{"unclassified", fmt.Errorf("something odd"), ErrInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MapError(tc.in)
			if !errors.Is(got, tc.want) {
				t.Errorf("MapError(%v) = %v, want category %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestMapErrorPassthrough(t *testing.T) {
	if MapError(nil) != nil {
		t.Error("MapError(nil) must be nil")
	}

	got := MapError(context.Canceled)
	if !errors.Is(got, context.Canceled) {
		t.Errorf("context.Canceled must propagate as-is, got %v", got)
	}

	got = MapError(context.DeadlineExceeded)
	if !errors.Is(got, ErrTransient) {
		t.Errorf("deadline exceeded should be transient, got %v", got)
	}
}

func TestRejectionCategories(t *testing.T) {
	until := time.Now().Add(time.Hour)

	var err error = Muted(until)
	if !errors.Is(err, ErrMuted) {
		t.Error("Muted rejection must match ErrMuted")
	}

	err = RateLimited(until)
	if !errors.Is(err, ErrRateLimited) {
		t.Error("RateLimited rejection must match ErrRateLimited")
	}

	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatal("Rejection must be recoverable with errors.As")
	}
	if !rej.RetryAt.Equal(until) {
		t.Errorf("RetryAt = %v, want %v", rej.RetryAt, until)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) must be nil")
	}

	wrapped := Wrap(ErrTransient, "send message")
	if !errors.Is(wrapped, ErrTransient) {
		t.Error("Wrap must preserve the category")
	}
	if wrapped.Error() != "send message: transient error" {
		t.Errorf("Unexpected message: %q", wrapped.Error())
	}
}

func TestIsCategory(t *testing.T) {
	if IsCategory(nil, ErrTransient) {
		t.Error("nil is in no category")
	}
	if !IsCategory(InvalidInput("bad minutes"), ErrInvalidInput) {
		t.Error("constructor output must match its category")
	}
	if IsCategory(Internal("boom"), ErrInvalidInput) {
		t.Error("categories must not cross-match")
	}
}
