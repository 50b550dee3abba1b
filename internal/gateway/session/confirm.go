package session

import (
	"github.com/tarmacbot/tarmac/internal/transport"

	"github.com/oklog/ulid/v2"
)

type Outcome int

const (
	OutcomeConfirmed Outcome = iota
	OutcomeCancelled
	OutcomeTimedOut
)

// Accepted reports whether the gate was confirmed. Timed-out and cancelled
// are both refusals; callers must not distinguish them.
func (o Outcome) Accepted() bool {
	return o == OutcomeConfirmed
}

// ConfirmGate is a two-button confirm/cancel flow with a bounded wait. The
// caller observes exactly one of confirmed, cancelled, or timed-out on Done.
type ConfirmGate struct {
	prefix  string
	prompt  string
	decided bool
	outcome Outcome
	done    chan Outcome
}

func NewConfirmGate(prompt string) *ConfirmGate {
	return &ConfirmGate{
		prefix: ulid.Make().String(),
		prompt: prompt,
		done:   make(chan Outcome, 1),
	}
}

// Done delivers the single outcome of the gate.
func (c *ConfirmGate) Done() <-chan Outcome {
	return c.done
}

func (c *ConfirmGate) id(suffix string) string {
	return c.prefix + ":" + suffix
}

func (c *ConfirmGate) Render() transport.Render {
	text := c.prompt
	if c.decided {
		switch c.outcome {
		case OutcomeConfirmed:
			text = c.prompt + "\n\nConfirmed."
		case OutcomeCancelled:
			text = c.prompt + "\n\nCancelled."
		case OutcomeTimedOut:
			text = c.prompt + "\n\nTimed out."
		}
	}

	return transport.Render{
		Text: text,
		Rows: []transport.Row{{
			Buttons: []transport.Button{
				{ID: c.id("confirm"), Label: "Confirm", Disabled: c.decided},
				{ID: c.id("cancel"), Label: "Cancel", Disabled: c.decided},
			},
		}},
	}
}

func (c *ConfirmGate) Handle(componentID, value string) bool {
	if c.decided {
		return false
	}
	switch componentID {
	case c.id("confirm"):
		c.resolve(OutcomeConfirmed)
	case c.id("cancel"):
		c.resolve(OutcomeCancelled)
	default:
		return false
	}
	return true
}

func (c *ConfirmGate) Completed() bool {
	return c.decided
}

// OnSessionClose resolves an undecided gate: a timer close is a timeout, an
// explicit close a cancellation.
func (c *ConfirmGate) OnSessionClose(reason CloseReason) {
	if c.decided {
		return
	}
	switch reason {
	case ReasonIdle, ReasonHard:
		c.resolve(OutcomeTimedOut)
	default:
		c.resolve(OutcomeCancelled)
	}
}

func (c *ConfirmGate) resolve(outcome Outcome) {
	c.decided = true
	c.outcome = outcome
	c.done <- outcome
}
