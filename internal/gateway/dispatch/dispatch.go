package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/tarmacbot/tarmac/internal/concurrency"
	"github.com/tarmacbot/tarmac/internal/config"
	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/gateway/event"
	"github.com/tarmacbot/tarmac/internal/gateway/guard"
	"github.com/tarmacbot/tarmac/internal/gateway/ratelimit"
	"github.com/tarmacbot/tarmac/internal/gateway/session"
	"github.com/tarmacbot/tarmac/internal/logger"
	"github.com/tarmacbot/tarmac/internal/store"
	"github.com/tarmacbot/tarmac/internal/transport"
)

// Invocation is what a command handler receives: the triggering event, the
// resolved actor, and the capabilities to render with.
type Invocation struct {
	Event     *event.Event
	Actor     *store.Actor
	Transport transport.Transport
	Sessions  *session.Manager
}

// Handler executes one command. Returning a *errors.Rejection (as error)
// surfaces it verbatim to the actor; any other error yields a generic
// failure message.
type Handler func(ctx context.Context, inv *Invocation) error

// AutocompleteHandler answers typeahead queries. It bypasses guard and
// limiter: it must stay cheap and side-effect free.
type AutocompleteHandler func(ctx context.Context, evt *event.Event) ([]string, error)

// Command pairs a handler with its dispatch metadata.
type Command struct {
	Name      string
	Cooldown  time.Duration // zero means the gateway default
	AdminOnly bool
	Handler   Handler
}

// Dispatcher receives every inbound event and runs the gateway pipeline:
// Access Guard, Rate Limiter, then the matching handler or live session.
// Every rejection path produces exactly one user-visible message.
type Dispatcher struct {
	guard    *guard.Guard
	limiter  *ratelimit.Limiter
	sessions *session.Manager

	transports    map[string]transport.Transport
	commands      map[string]*Command
	autocompletes map[string]AutocompleteHandler

	locks           *concurrency.ActorLockManager
	defaultCooldown time.Duration
}

func New(g *guard.Guard, l *ratelimit.Limiter, sm *session.Manager, cfg config.GatewayConfig) (*Dispatcher, error) {
	defaultCooldown, err := config.DurationOrDefault(cfg.DefaultCommandCooldown, config.DefaultCommandCooldown)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		guard:           g,
		limiter:         l,
		sessions:        sm,
		transports:      make(map[string]transport.Transport),
		commands:        make(map[string]*Command),
		autocompletes:   make(map[string]AutocompleteHandler),
		locks:           concurrency.NewActorLockManager(),
		defaultCooldown: defaultCooldown,
	}, nil
}

// RegisterTransport makes a transport available for replies, keyed by its
// name (which matches event sources).
func (d *Dispatcher) RegisterTransport(tr transport.Transport) {
	d.transports[tr.Name()] = tr
}

// Register adds a command to the dispatch table.
func (d *Dispatcher) Register(cmd *Command) {
	d.commands[cmd.Name] = cmd
}

// RegisterAutocomplete adds a typeahead handler for a command.
func (d *Dispatcher) RegisterAutocomplete(command string, h AutocompleteHandler) {
	d.autocompletes[command] = h
}

// Dispatch processes one inbound event end to end. It never returns an
// error: every failure mode ends in either a user-visible message or a
// logged no-op, so the event stream keeps flowing.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *event.Event) {
	if evt == nil {
		return
	}

	ctx = logger.WithTraceID(ctx, evt.ID)
	ctx = logger.WithActorID(ctx, evt.ActorID)

	// Serialize events per actor; the transports deliver concurrently.
	d.locks.Lock(evt.ActorID)
	defer d.locks.Unlock(evt.ActorID)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Handler panic contained", "event", evt.ID, "panic", r, "stack", string(debug.Stack()))
			d.reply(ctx, evt, "Something went wrong handling that.")
		}
	}()

	switch evt.Kind {
	case event.KindComponent:
		d.dispatchComponent(ctx, evt)
	case event.KindAutocomplete:
		d.dispatchAutocomplete(ctx, evt)
	case event.KindCommand:
		d.dispatchCommand(ctx, evt)
	default:
		slog.Debug("Event with unknown kind dropped", "event", evt.ID, "kind", evt.Kind)
	}
}

func (d *Dispatcher) dispatchComponent(ctx context.Context, evt *event.Event) {
	// Mutes cover component events too; no usage counter is touched here.
	_, rejection, err := d.guard.Authorize(ctx, evt.ActorID, "")
	if err != nil {
		slog.Error("Guard unavailable", "event", evt.ID, "error", err)
		d.reply(ctx, evt, "Something went wrong handling that.")
		return
	}
	if rejection != nil {
		d.reply(ctx, evt, rejection.Message)
		return
	}

	d.sessions.HandleEvent(ctx, evt)
}

func (d *Dispatcher) dispatchAutocomplete(ctx context.Context, evt *event.Event) {
	h, ok := d.autocompletes[evt.Command]
	if !ok {
		slog.Debug("Autocomplete for unknown command", "command", evt.Command)
		return
	}
	if _, err := h(ctx, evt); err != nil {
		slog.Debug("Autocomplete failed", "command", evt.Command, "error", err)
	}
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, evt *event.Event) {
	cmd, ok := d.commands[evt.Command]
	if !ok {
		d.reply(ctx, evt, "Unknown command: "+evt.Command)
		return
	}

	actor, rejection, err := d.guard.Authorize(ctx, evt.ActorID, evt.Command)
	if err != nil {
		slog.Error("Guard unavailable", "event", evt.ID, "error", err)
		d.reply(ctx, evt, "Something went wrong handling that.")
		return
	}
	if rejection != nil {
		d.reply(ctx, evt, rejection.Message)
		return
	}

	if cmd.AdminOnly && actor.AdminLevel == 0 {
		d.reply(ctx, evt, "That command requires admin access.")
		return
	}

	// Admin-level actors bypass the limiter entirely.
	if actor.AdminLevel == 0 {
		cooldown := cmd.Cooldown
		if cooldown <= 0 {
			cooldown = d.defaultCooldown
		}

		decision, err := d.limiter.CheckCommand(evt.ActorID, evt.Command, cooldown)
		if err != nil {
			slog.Error("Limiter unavailable", "event", evt.ID, "error", err)
			d.reply(ctx, evt, "Something went wrong handling that.")
			return
		}
		if !decision.Allowed {
			d.reply(ctx, evt, errors.RateLimited(decision.RetryAt).Message)
			return
		}
	}

	slog.Debug("Dispatching command", "event", evt.ID, "command", evt.Command, "actor", evt.ActorID)

	inv := &Invocation{
		Event:     evt,
		Actor:     actor,
		Transport: d.transports[evt.Source],
		Sessions:  d.sessions,
	}

	if err := cmd.Handler(ctx, inv); err != nil {
		var rej *errors.Rejection
		if errors.As(err, &rej) {
			d.reply(ctx, evt, rej.Message)
			return
		}
		if errors.IsCategory(err, errors.ErrInvalidInput) {
			d.reply(ctx, evt, err.Error())
			return
		}
		slog.Error("Command handler failed", "event", evt.ID, "command", evt.Command, "error", err)
		d.reply(ctx, evt, "Something went wrong handling that.")
	}
}

// reply sends the single user-facing message for a rejection or failure. A
// transport failure here is logged and dropped; there is nothing further to
// tell the actor through a transport that cannot speak.
func (d *Dispatcher) reply(ctx context.Context, evt *event.Event, text string) {
	tr, ok := d.transports[evt.Source]
	if !ok {
		slog.Debug("No transport for reply", "source", evt.Source)
		return
	}
	if _, err := tr.Send(ctx, evt.Channel, transport.Render{Text: text}); err != nil {
		slog.Error("Failed to deliver reply", "event", evt.ID, "error", err)
	}
}
