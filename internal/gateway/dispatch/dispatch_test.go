package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/tarmacbot/tarmac/internal/config"
	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/gateway/event"
	"github.com/tarmacbot/tarmac/internal/gateway/guard"
	"github.com/tarmacbot/tarmac/internal/gateway/ratelimit"
	"github.com/tarmacbot/tarmac/internal/gateway/session"
	"github.com/tarmacbot/tarmac/internal/store"
	"github.com/tarmacbot/tarmac/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testGateway struct {
	dispatcher *Dispatcher
	store      *store.Store
	sessions   *session.Manager
	transport  *transport.NullTransport
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	cfg := config.GatewayConfig{}

	g := guard.New(st)
	limiter, err := ratelimit.New(st, cfg)
	require.NoError(t, err)
	sessions, err := session.NewManager(cfg)
	require.NoError(t, err)

	d, err := New(g, limiter, sessions, cfg)
	require.NoError(t, err)

	tr := transport.NewNullTransport("null")
	d.RegisterTransport(tr)

	return &testGateway{dispatcher: d, store: st, sessions: sessions, transport: tr}
}

func commandEvent(command string, args ...string) *event.Event {
	evt := event.New("null", event.KindCommand, "player-1", "ch")
	evt.Command = command
	evt.Args = args
	return evt
}

func lastReply(t *testing.T, tr *transport.NullTransport) string {
	t.Helper()
	require.NotEmpty(t, tr.Sent)
	return tr.Sent[len(tr.Sent)-1].Render.Text
}

func TestDispatchRunsHandler(t *testing.T) {
	gw := newTestGateway(t)

	ran := false
	gw.dispatcher.Register(&Command{
		Name: "ping",
		Handler: func(ctx context.Context, inv *Invocation) error {
			ran = true
			assert.Equal(t, "player-1", inv.Actor.ID)
			assert.NotNil(t, inv.Transport)
			_, err := inv.Transport.Send(ctx, inv.Event.Channel, transport.Render{Text: "pong"})
			return err
		},
	})

	gw.dispatcher.Dispatch(context.Background(), commandEvent("ping"))

	assert.True(t, ran)
	assert.Equal(t, "pong", lastReply(t, gw.transport))
}

func TestDispatchUnknownCommand(t *testing.T) {
	gw := newTestGateway(t)

	gw.dispatcher.Dispatch(context.Background(), commandEvent("bogus"))

	assert.Contains(t, lastReply(t, gw.transport), "Unknown command")
}

func TestDispatchMutedActor(t *testing.T) {
	gw := newTestGateway(t)
	gw.dispatcher.Register(&Command{
		Name:    "ping",
		Handler: func(ctx context.Context, inv *Invocation) error { return nil },
	})

	require.NoError(t, gw.store.SetMuteUntil("player-1", time.Now().Add(time.Hour)))

	gw.dispatcher.Dispatch(context.Background(), commandEvent("ping"))

	assert.Contains(t, lastReply(t, gw.transport), "muted until")

	a, err := gw.store.GetOrCreateActor("player-1")
	require.NoError(t, err)
	assert.Zero(t, a.Usage["ping"], "a muted attempt never counts as usage")
}

func TestDispatchRateLimitsRepeat(t *testing.T) {
	gw := newTestGateway(t)

	runs := 0
	gw.dispatcher.Register(&Command{
		Name:     "ping",
		Cooldown: time.Hour,
		Handler: func(ctx context.Context, inv *Invocation) error {
			runs++
			return nil
		},
	})

	gw.dispatcher.Dispatch(context.Background(), commandEvent("ping"))
	gw.dispatcher.Dispatch(context.Background(), commandEvent("ping"))

	assert.Equal(t, 1, runs)
	assert.Contains(t, lastReply(t, gw.transport), "slow down")
}

func TestDispatchAdminBypassesLimiter(t *testing.T) {
	gw := newTestGateway(t)
	require.NoError(t, gw.store.SetAdminLevel("player-1", 1))

	runs := 0
	gw.dispatcher.Register(&Command{
		Name:     "ping",
		Cooldown: time.Hour,
		Handler: func(ctx context.Context, inv *Invocation) error {
			runs++
			return nil
		},
	})

	gw.dispatcher.Dispatch(context.Background(), commandEvent("ping"))
	gw.dispatcher.Dispatch(context.Background(), commandEvent("ping"))

	assert.Equal(t, 2, runs)
}

func TestDispatchAdminOnlyCommand(t *testing.T) {
	gw := newTestGateway(t)

	ran := false
	gw.dispatcher.Register(&Command{
		Name:      "mute",
		AdminOnly: true,
		Handler: func(ctx context.Context, inv *Invocation) error {
			ran = true
			return nil
		},
	})

	gw.dispatcher.Dispatch(context.Background(), commandEvent("mute"))
	assert.False(t, ran)
	assert.Contains(t, lastReply(t, gw.transport), "admin")

	require.NoError(t, gw.store.SetAdminLevel("player-1", 2))
	gw.dispatcher.Dispatch(context.Background(), commandEvent("mute"))
	assert.True(t, ran)
}

func TestDispatchInvalidInputSurfaced(t *testing.T) {
	gw := newTestGateway(t)
	gw.dispatcher.Register(&Command{
		Name: "remind",
		Handler: func(ctx context.Context, inv *Invocation) error {
			return errors.InvalidInput("usage: /remind <minutes> <text ...>")
		},
	})

	gw.dispatcher.Dispatch(context.Background(), commandEvent("remind"))

	assert.Contains(t, lastReply(t, gw.transport), "usage: /remind")
}

func TestDispatchRejectionSurfacedVerbatim(t *testing.T) {
	gw := newTestGateway(t)
	gw.dispatcher.Register(&Command{
		Name: "ping",
		Handler: func(ctx context.Context, inv *Invocation) error {
			return &errors.Rejection{Message: "not during boarding"}
		},
	})

	gw.dispatcher.Dispatch(context.Background(), commandEvent("ping"))

	assert.Equal(t, "not during boarding", lastReply(t, gw.transport))
}

func TestDispatchInternalErrorGenericReply(t *testing.T) {
	gw := newTestGateway(t)
	gw.dispatcher.Register(&Command{
		Name: "ping",
		Handler: func(ctx context.Context, inv *Invocation) error {
			return errors.Internal("store exploded")
		},
	})

	gw.dispatcher.Dispatch(context.Background(), commandEvent("ping"))

	reply := lastReply(t, gw.transport)
	assert.NotContains(t, reply, "store exploded", "internals never leak to the actor")
	assert.Contains(t, reply, "Something went wrong")
}

func TestDispatchPanicContained(t *testing.T) {
	gw := newTestGateway(t)
	gw.dispatcher.Register(&Command{
		Name: "boom",
		Handler: func(ctx context.Context, inv *Invocation) error {
			panic("handler bug")
		},
	})

	// Must not propagate.
	gw.dispatcher.Dispatch(context.Background(), commandEvent("boom"))

	assert.Contains(t, lastReply(t, gw.transport), "Something went wrong")

	// The gateway keeps serving afterwards.
	gw.dispatcher.Dispatch(context.Background(), commandEvent("nope"))
	assert.Contains(t, lastReply(t, gw.transport), "Unknown command")
}

func TestDispatchComponentRoutesToSession(t *testing.T) {
	gw := newTestGateway(t)

	p := session.NewPaginator([]string{"one", "two"})
	s, err := gw.sessions.Open(context.Background(), gw.transport, "ch", "player-1", p, session.Options{})
	require.NoError(t, err)
	defer s.Close(context.Background(), session.ReasonExplicit)

	next := p.Render().ComponentIDs()[3]
	evt := event.New("null", event.KindComponent, "player-1", "ch")
	evt.MessageID = s.Ref().ID
	evt.ComponentID = next

	gw.dispatcher.Dispatch(context.Background(), evt)

	assert.Equal(t, 1, p.Page())
	require.NotNil(t, gw.transport.LastEdit())
	assert.Equal(t, "two", gw.transport.LastEdit().Render.Text)
}

func TestDispatchComponentFromMutedActor(t *testing.T) {
	gw := newTestGateway(t)

	p := session.NewPaginator([]string{"one", "two"})
	s, err := gw.sessions.Open(context.Background(), gw.transport, "ch", "player-1", p, session.Options{})
	require.NoError(t, err)
	defer s.Close(context.Background(), session.ReasonExplicit)

	require.NoError(t, gw.store.SetMuteUntil("player-1", time.Now().Add(time.Hour)))

	evt := event.New("null", event.KindComponent, "player-1", "ch")
	evt.MessageID = s.Ref().ID
	evt.ComponentID = p.Render().ComponentIDs()[3]

	gw.dispatcher.Dispatch(context.Background(), evt)

	assert.Equal(t, 0, p.Page(), "mutes cover component events too")
	assert.Contains(t, lastReply(t, gw.transport), "muted until")
}

func TestDispatchAutocompleteBypassesGuard(t *testing.T) {
	gw := newTestGateway(t)

	var gotQuery string
	gw.dispatcher.RegisterAutocomplete("route", func(ctx context.Context, evt *event.Event) ([]string, error) {
		gotQuery = evt.Value
		return []string{"LHR", "LAX"}, nil
	})

	// Even a muted actor may type ahead; the handler must stay side-effect
	// free so there is nothing to guard.
	require.NoError(t, gw.store.SetMuteUntil("player-1", time.Now().Add(time.Hour)))

	evt := event.New("null", event.KindAutocomplete, "player-1", "ch")
	evt.Command = "route"
	evt.Value = "L"
	gw.dispatcher.Dispatch(context.Background(), evt)

	assert.Equal(t, "L", gotQuery)
	assert.Empty(t, gw.transport.Sent, "autocomplete never produces a reply message")
}

func TestDispatchNilEvent(t *testing.T) {
	gw := newTestGateway(t)
	gw.dispatcher.Dispatch(context.Background(), nil) // must not panic
}
