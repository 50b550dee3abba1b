package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/store"
)

// ActorStore is the slice of the durable store the guard needs. Actor records
// are owned here; other gateway components only read them.
type ActorStore interface {
	GetOrCreateActor(id string) (*store.Actor, error)
	ClearMute(id string, observed time.Time) error
	IncrementUsage(id, command string) error
	SetMuteUntil(id string, until time.Time) error
	AddWarning(id, reason string) error
}

// Guard decides whether an actor may proceed, enforcing account-level access
// state (mutes) and recording per-command usage.
type Guard struct {
	store ActorStore
}

func New(s ActorStore) *Guard {
	return &Guard{store: s}
}

// Authorize loads (creating lazily) the actor record and checks its mute
// state. For command events pass the command name so the usage counter is
// incremented; component events pass "".
//
// A muted actor gets a rejection carrying the mute expiry verbatim; an
// expired mute is cleared as a side effect (lazy expiry). Store failure is
// fatal for the current event and is not retried here.
func (g *Guard) Authorize(ctx context.Context, actorID, command string) (*store.Actor, *errors.Rejection, error) {
	actor, err := g.store.GetOrCreateActor(actorID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load actor")
	}

	if actor.MuteUntil != nil {
		until := *actor.MuteUntil
		if time.Now().Before(until) {
			return actor, errors.Muted(until), nil
		}
		if err := g.store.ClearMute(actorID, until); err != nil {
			return nil, nil, errors.Wrap(err, "clear expired mute")
		}
		actor.MuteUntil = nil
	}

	if command != "" {
		if err := g.store.IncrementUsage(actorID, command); err != nil {
			return nil, nil, errors.Wrap(err, "record usage")
		}
		slog.Debug("Command authorized", "actor", actorID, "command", command)
	}

	return actor, nil, nil
}

// Warn appends a warning to the actor's audit trail. Admin-gated at the call
// site.
func (g *Guard) Warn(ctx context.Context, actorID, reason string) error {
	return g.store.AddWarning(actorID, reason)
}

// Mute suspends the actor until the given time. Admin-gated at the call site.
func (g *Guard) Mute(ctx context.Context, actorID string, until time.Time) error {
	return g.store.SetMuteUntil(actorID, until)
}
