package guard

import (
	"context"
	"testing"
	"time"

	"github.com/tarmacbot/tarmac/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T) (*Guard, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return New(st), st
}

func TestAuthorizeCreatesActorLazily(t *testing.T) {
	g, _ := newTestGuard(t)

	actor, rejection, err := g.Authorize(context.Background(), "player-1", "help")
	require.NoError(t, err)
	assert.Nil(t, rejection)
	assert.Equal(t, "player-1", actor.ID)
}

func TestAuthorizeCountsCommandsOnly(t *testing.T) {
	g, st := newTestGuard(t)
	ctx := context.Background()

	_, _, err := g.Authorize(ctx, "player-1", "help")
	require.NoError(t, err)
	_, _, err = g.Authorize(ctx, "player-1", "help")
	require.NoError(t, err)

	// Component events pass "" and must not touch the counter.
	_, _, err = g.Authorize(ctx, "player-1", "")
	require.NoError(t, err)

	a, err := st.GetOrCreateActor("player-1")
	require.NoError(t, err)
	assert.Equal(t, 2, a.Usage["help"])
}

func TestAuthorizeMutedActor(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	until := time.Now().Add(time.Hour)
	require.NoError(t, g.Mute(ctx, "player-1", until))

	_, rejection, err := g.Authorize(ctx, "player-1", "help")
	require.NoError(t, err)
	require.NotNil(t, rejection)
	assert.Equal(t, until, rejection.RetryAt)
	assert.Contains(t, rejection.Message, "muted until")
}

func TestAuthorizeMutedActorSkipsUsage(t *testing.T) {
	g, st := newTestGuard(t)
	ctx := context.Background()

	require.NoError(t, g.Mute(ctx, "player-1", time.Now().Add(time.Hour)))

	_, rejection, err := g.Authorize(ctx, "player-1", "help")
	require.NoError(t, err)
	require.NotNil(t, rejection)

	a, err := st.GetOrCreateActor("player-1")
	require.NoError(t, err)
	assert.Zero(t, a.Usage["help"], "a rejected command must not count as usage")
}

func TestAuthorizeClearsExpiredMute(t *testing.T) {
	g, st := newTestGuard(t)
	ctx := context.Background()

	require.NoError(t, g.Mute(ctx, "player-1", time.Now().Add(-time.Minute)))

	actor, rejection, err := g.Authorize(ctx, "player-1", "help")
	require.NoError(t, err)
	assert.Nil(t, rejection)
	assert.Nil(t, actor.MuteUntil)

	// The lazy clear is persisted.
	a, err := st.GetOrCreateActor("player-1")
	require.NoError(t, err)
	assert.Nil(t, a.MuteUntil)
}

func TestWarn(t *testing.T) {
	g, st := newTestGuard(t)

	require.NoError(t, g.Warn(context.Background(), "player-1", "spamming the tower"))

	a, err := st.GetOrCreateActor("player-1")
	require.NoError(t, err)
	require.Len(t, a.Warnings, 1)
	assert.Equal(t, "spamming the tower", a.Warnings[0].Reason)
}
