package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tarmacbot/tarmac/internal/config"
	"github.com/tarmacbot/tarmac/internal/gateway/event"
	"github.com/tarmacbot/tarmac/internal/transport"

	"github.com/oklog/ulid/v2"
)

// Renderer is one interactive surface: it produces the current render and
// mutates its state on component events. Implementations are not safe for
// concurrent use; the owning Session serializes calls.
type Renderer interface {
	// Render returns the current payload, including component rows.
	Render() transport.Render

	// Handle applies a component event. It returns true when the state
	// changed and the message must be re-rendered.
	Handle(componentID, value string) bool
}

// completer is implemented by renderers whose flow ends itself (confirm
// gates). When Completed reports true after a handled event, the session
// closes.
type completer interface {
	Completed() bool
}

// closeAware is implemented by renderers that need to observe the close
// (confirm gates resolving to cancelled/timed-out).
type closeAware interface {
	OnSessionClose(reason CloseReason)
}

type CloseReason int

const (
	ReasonIdle CloseReason = iota
	ReasonHard
	ReasonExplicit
	ReasonResolved
)

// Options bound a session's lifetime. Idle resets on every owner event; hard
// never does, bounding total exposure even under continuous interaction.
type Options struct {
	IdleTimeout time.Duration
	HardTimeout time.Duration
}

// Manager owns every live UI session, keyed by the rendered message. Exactly
// one session owns a given message's components at a time.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	idleTimeout time.Duration
	hardTimeout time.Duration
}

func NewManager(cfg config.GatewayConfig) (*Manager, error) {
	idle, err := config.DurationOrDefault(cfg.SessionIdleTimeout, config.DefaultSessionIdleTimeout)
	if err != nil {
		return nil, err
	}
	hard, err := config.DurationOrDefault(cfg.SessionHardTimeout, config.DefaultSessionHardTimeout)
	if err != nil {
		return nil, err
	}

	return &Manager{
		sessions:    make(map[string]*Session),
		idleTimeout: idle,
		hardTimeout: hard,
	}, nil
}

func sessionKey(source string, ref transport.MessageRef) string {
	return fmt.Sprintf("%s/%s/%s", source, ref.Channel, ref.ID)
}

// Open renders the surface into the channel and attaches a session to the
// resulting message. Zero option fields fall back to the manager defaults.
func (m *Manager) Open(ctx context.Context, tr transport.Transport, channel, ownerID string, r Renderer, opts Options) (*Session, error) {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = m.idleTimeout
	}
	if opts.HardTimeout <= 0 {
		opts.HardTimeout = m.hardTimeout
	}

	ref, err := tr.Send(ctx, channel, r.Render())
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:          ulid.Make().String(),
		owner:       ownerID,
		source:      tr.Name(),
		ref:         ref,
		tr:          tr,
		renderer:    r,
		mgr:         m,
		idleTimeout: opts.IdleTimeout,
	}

	m.mu.Lock()
	m.sessions[sessionKey(s.source, ref)] = s
	m.mu.Unlock()

	// Both timers are assigned under the session lock. Close takes the same
	// lock before touching them, so a callback firing immediately blocks
	// until both fields are set.
	s.mu.Lock()
	s.idleTimer = time.AfterFunc(opts.IdleTimeout, func() {
		s.Close(context.Background(), ReasonIdle)
	})
	s.hardTimer = time.AfterFunc(opts.HardTimeout, func() {
		s.Close(context.Background(), ReasonHard)
	})
	s.mu.Unlock()

	slog.Debug("Session opened", "session", s.ID, "owner", ownerID, "message", ref.ID)
	return s, nil
}

// HandleEvent routes a component event to the owning session. An event for a
// message with no live session is a no-op with a debug log, never an error.
func (m *Manager) HandleEvent(ctx context.Context, evt *event.Event) {
	key := sessionKey(evt.Source, transport.MessageRef{Channel: evt.Channel, ID: evt.MessageID})

	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()

	if !ok {
		slog.Debug("Component event for unknown session", "message", evt.MessageID)
		return
	}

	s.HandleComponent(ctx, evt)
}

func (m *Manager) detach(s *Session) {
	m.mu.Lock()
	delete(m.sessions, sessionKey(s.source, s.ref))
	m.mu.Unlock()
}

// Live reports the number of open sessions.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll closes every live session, for daemon shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		s.Close(ctx, ReasonExplicit)
	}
}

// Session binds one renderer to one rendered message for one owning actor.
// Component events from anyone else are silently ignored.
type Session struct {
	ID     string
	owner  string
	source string
	ref    transport.MessageRef
	tr     transport.Transport

	mu          sync.Mutex
	renderer    Renderer
	closed      bool
	idleTimer   *time.Timer
	hardTimer   *time.Timer
	idleTimeout time.Duration

	mgr *Manager
}

// Ref returns the message this session owns.
func (s *Session) Ref() transport.MessageRef {
	return s.ref
}

// HandleComponent applies one component event from the stream.
func (s *Session) HandleComponent(ctx context.Context, evt *event.Event) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		slog.Debug("Component event after close", "session", s.ID)
		return
	}

	if evt.ActorID != s.owner {
		// Intentionally silent: the only event path with no feedback.
		s.mu.Unlock()
		return
	}

	s.idleTimer.Reset(s.idleTimeout)

	changed := s.renderer.Handle(evt.ComponentID, evt.Value)
	done := false
	if c, ok := s.renderer.(completer); ok && c.Completed() {
		done = true
	}

	var render transport.Render
	if changed && !done {
		render = s.renderer.Render()
	}
	s.mu.Unlock()

	if done {
		s.Close(ctx, ReasonResolved)
		return
	}

	if changed {
		// A transient render failure does not tear the session down.
		if err := s.tr.Edit(ctx, s.ref, render); err != nil {
			slog.Error("Session re-render failed", "session", s.ID, "error", err)
		}
	}
}

// Close transitions the session to its terminal state: timers stopped,
// components re-rendered disabled exactly once, registry entry released.
// Idempotent; a failed disable-render is logged and swallowed since the
// session is ending regardless.
func (s *Session) Close(ctx context.Context, reason CloseReason) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	s.idleTimer.Stop()
	s.hardTimer.Stop()

	if ca, ok := s.renderer.(closeAware); ok {
		ca.OnSessionClose(reason)
	}
	render := s.renderer.Render()
	s.mu.Unlock()

	s.mgr.detach(s)

	if err := s.tr.Disable(ctx, s.ref, render); err != nil {
		slog.Warn("Failed to disable session components", "session", s.ID, "error", err)
	}

	slog.Debug("Session closed", "session", s.ID, "reason", reason)
}

// Closed reports whether the session reached its terminal state.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
