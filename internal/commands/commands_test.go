package commands

import (
	"context"
	"testing"
	"time"

	"filippo.io/age"

	"github.com/tarmacbot/tarmac/internal/config"
	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/gateway/deferred"
	"github.com/tarmacbot/tarmac/internal/gateway/dispatch"
	"github.com/tarmacbot/tarmac/internal/gateway/event"
	"github.com/tarmacbot/tarmac/internal/gateway/guard"
	"github.com/tarmacbot/tarmac/internal/gateway/session"
	"github.com/tarmacbot/tarmac/internal/store"
	"github.com/tarmacbot/tarmac/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store     *store.Store
	deps      *Deps
	sessions  *session.Manager
	transport *transport.NullTransport
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	tr := transport.NewNullTransport("null")

	sched, err := deferred.NewScheduler(st, tr, identity, config.DeferredConfig{})
	require.NoError(t, err)
	t.Cleanup(sched.Stop)

	sessions, err := session.NewManager(config.GatewayConfig{})
	require.NoError(t, err)

	return &testEnv{
		store:    st,
		sessions: sessions,
		deps: &Deps{
			Guard:          guard.New(st),
			Scheduler:      sched,
			ConfirmTimeout: 30 * time.Second,
		},
		transport: tr,
	}
}

func (e *testEnv) invoke(t *testing.T, command string, args ...string) (*dispatch.Invocation, error) {
	t.Helper()

	evt := event.New("null", event.KindCommand, "player-1", "ch")
	evt.Command = command
	evt.Args = args

	actor, err := e.store.GetOrCreateActor("player-1")
	require.NoError(t, err)

	inv := &dispatch.Invocation{
		Event:     evt,
		Actor:     actor,
		Transport: e.transport,
		Sessions:  e.sessions,
	}

	var cmd *dispatch.Command
	switch command {
	case "help":
		cmd = helpCommand()
	case "stats":
		cmd = statsCommand()
	case "giveaway":
		cmd = giveawayCommand(e.deps)
	case "giveaway-cancel":
		cmd = giveawayCancelCommand(e.deps)
	case "remind":
		cmd = remindCommand(e.deps)
	case "warn":
		cmd = warnCommand(e.deps)
	case "mute":
		cmd = muteCommand(e.deps)
	default:
		t.Fatalf("unknown test command %q", command)
	}
	return inv, cmd.Handler(context.Background(), inv)
}

func (e *testEnv) pendingActions(t *testing.T) []*store.DeferredAction {
	t.Helper()
	pending, err := e.store.ListPendingDeferred(time.Now().Add(24 * time.Hour))
	require.NoError(t, err)
	return pending
}

func TestHelpOpensPaginator(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.invoke(t, "help")
	require.NoError(t, err)

	require.Len(t, e.transport.Sent, 1)
	assert.Contains(t, e.transport.Sent[0].Render.Text, "/giveaway")
	assert.NotEmpty(t, e.transport.Sent[0].Render.Rows, "help is paginated")
	assert.Equal(t, 1, e.sessions.Live())
}

func TestStatsShowsUsageAndStanding(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.IncrementUsage("player-1", "help"))
	require.NoError(t, e.store.AddWarning("player-1", "taxiing too fast"))

	_, err := e.invoke(t, "stats")
	require.NoError(t, err)

	require.Len(t, e.transport.Sent, 1)
	assert.Contains(t, e.transport.Sent[0].Render.Text, "/help: 1")

	// Switching the view swaps in the standing body.
	sent := e.transport.Sent[0]
	require.Len(t, sent.Render.Rows, 1)
	sel := sent.Render.Rows[0].Select
	require.NotNil(t, sel)

	evt := event.New("null", event.KindComponent, "player-1", "ch")
	evt.MessageID = sent.Ref.ID
	evt.ComponentID = sel.ID
	evt.Value = "standing"
	e.sessions.HandleEvent(context.Background(), evt)

	require.NotNil(t, e.transport.LastEdit())
	assert.Contains(t, e.transport.LastEdit().Render.Text, "taxiing too fast")
}

func TestGiveawayValidation(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.invoke(t, "giveaway")
	assert.True(t, errors.IsCategory(err, errors.ErrInvalidInput))

	_, err = e.invoke(t, "giveaway", "zero", "prize", "ann")
	assert.True(t, errors.IsCategory(err, errors.ErrInvalidInput))

	_, err = e.invoke(t, "giveaway", "-5", "prize", "ann")
	assert.True(t, errors.IsCategory(err, errors.ErrInvalidInput))
}

func TestGiveawayConfirmSchedules(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.invoke(t, "giveaway", "10", "voucher-123", "ann", "ben")
	require.NoError(t, err)

	// Nothing is scheduled until the gate is confirmed.
	assert.Empty(t, e.pendingActions(t))

	require.Len(t, e.transport.Sent, 1)
	prompt := e.transport.Sent[0]
	confirmID := prompt.Render.ComponentIDs()[0]

	evt := event.New("null", event.KindComponent, "player-1", "ch")
	evt.MessageID = prompt.Ref.ID
	evt.ComponentID = confirmID
	e.sessions.HandleEvent(context.Background(), evt)

	require.Eventually(t, func() bool {
		return len(e.pendingActions(t)) == 1
	}, time.Second, 10*time.Millisecond)

	a := e.pendingActions(t)[0]
	assert.Equal(t, deferred.KindGiveaway, a.Kind)
	assert.Equal(t, []string{"ann", "ben"}, a.Participants)
	assert.Equal(t, "player-1", a.CreatedBy)
	assert.NotContains(t, a.Secret, "voucher-123")
}

func TestGiveawayCancelDeclined(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.invoke(t, "giveaway", "10", "voucher-123", "ann")
	require.NoError(t, err)

	prompt := e.transport.Sent[0]
	cancelID := prompt.Render.ComponentIDs()[1]

	evt := event.New("null", event.KindComponent, "player-1", "ch")
	evt.MessageID = prompt.Ref.ID
	evt.ComponentID = cancelID
	e.sessions.HandleEvent(context.Background(), evt)

	// Give the waiting goroutine a moment; nothing may be scheduled.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, e.pendingActions(t))
}

func TestRemindSchedulesNotice(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.invoke(t, "remind", "5", "push", "back", "from", "gate")
	require.NoError(t, err)

	pending := e.pendingActions(t)
	require.Len(t, pending, 1)
	assert.Equal(t, deferred.KindNotice, pending[0].Kind)
	assert.Equal(t, "ch", pending[0].Channel)

	assert.Contains(t, lastSent(t, e.transport), "Reminder set")
}

func TestRemindValidation(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.invoke(t, "remind", "5")
	assert.True(t, errors.IsCategory(err, errors.ErrInvalidInput))

	_, err = e.invoke(t, "remind", "soon", "text")
	assert.True(t, errors.IsCategory(err, errors.ErrInvalidInput))
}

func TestGiveawayCancelCommand(t *testing.T) {
	e := newTestEnv(t)

	id, err := e.deps.Scheduler.Schedule(context.Background(), deferred.KindGiveaway,
		"null", "ch", "player-1", time.Now().Add(time.Hour), "voucher", []string{"ann"})
	require.NoError(t, err)

	_, err = e.invoke(t, "giveaway-cancel", id)
	require.NoError(t, err)

	assert.Empty(t, e.pendingActions(t))
	assert.Contains(t, lastSent(t, e.transport), "scrapped")
}

func TestWarnCommand(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.invoke(t, "warn", "player-2", "cutting", "the", "queue")
	require.NoError(t, err)

	a, err := e.store.GetOrCreateActor("player-2")
	require.NoError(t, err)
	require.Len(t, a.Warnings, 1)
	assert.Equal(t, "cutting the queue", a.Warnings[0].Reason)
}

func TestMuteCommand(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.invoke(t, "mute", "player-2", "15")
	require.NoError(t, err)

	a, err := e.store.GetOrCreateActor("player-2")
	require.NoError(t, err)
	require.NotNil(t, a.MuteUntil)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), *a.MuteUntil, 5*time.Second)

	_, err = e.invoke(t, "mute", "player-2")
	assert.True(t, errors.IsCategory(err, errors.ErrInvalidInput))
}

func lastSent(t *testing.T, tr *transport.NullTransport) string {
	t.Helper()
	require.NotEmpty(t, tr.Sent)
	return tr.Sent[len(tr.Sent)-1].Render.Text
}
