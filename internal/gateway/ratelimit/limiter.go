package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tarmacbot/tarmac/internal/config"
	"github.com/tarmacbot/tarmac/internal/errors"
)

// durablePurgeSlack is how long after expiry a durable record may linger
// before the store purges it. Reads compare timestamps, never removal timing,
// so the slack is invisible to callers.
const durablePurgeSlack = time.Minute

// removalSlack delays the ephemeral self-removal callback slightly past the
// entry's expiry so the timestamp comparison is always the authority.
const removalSlack = time.Second

// CooldownStore is the durable tier: cross-process, restart-surviving keyed
// expiries.
type CooldownStore interface {
	GetDurableCooldown(key string) (time.Time, error)
	SetDurableCooldown(key string, expiresAt time.Time, ttl time.Duration) error
	DeleteDurableCooldown(key string) error
}

// Decision is the limiter's answer for one command attempt.
type Decision struct {
	Allowed bool
	RetryAt time.Time
}

// Limiter tracks per-command cooldowns in memory and escalates to a durable
// blanket cooldown once an actor juggles too many of them at once. Ephemeral
// entries are lost on restart, which is acceptable: they are short and
// non-critical. The durable tier is shared across processes.
type Limiter struct {
	store      CooldownStore
	maxTracked int
	blanket    time.Duration

	mu        sync.Mutex
	ephemeral map[string]map[string]time.Time // actor -> command -> expiry

	now func() time.Time
}

type Option func(*Limiter)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(s CooldownStore, cfg config.GatewayConfig, opts ...Option) (*Limiter, error) {
	blanket, err := config.DurationOrDefault(cfg.BlanketCooldown, config.DefaultBlanketCooldown)
	if err != nil {
		return nil, err
	}

	maxTracked := cfg.MaxTrackedCooldowns
	if maxTracked <= 0 {
		maxTracked = config.DefaultMaxTrackedCooldowns
	}

	l := &Limiter{
		store:      s,
		maxTracked: maxTracked,
		blanket:    blanket,
		ephemeral:  make(map[string]map[string]time.Time),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// CheckGlobal returns the live durable expiry for the subject key, or the
// zero time if none.
func (l *Limiter) CheckGlobal(key string) (time.Time, error) {
	return l.store.GetDurableCooldown(key)
}

// ReserveGlobal installs a durable cooldown with an absolute expiry. Used for
// cross-restart throttles such as one notification per pricing period.
func (l *Limiter) ReserveGlobal(key string, expiresAt time.Time, ttl time.Duration) error {
	return l.store.SetDurableCooldown(key, expiresAt, ttl)
}

// CheckCommand decides whether actorID may run commandID now, installing the
// cooldown that covers the attempt when it may.
//
// A durable blanket cooldown on the actor dominates everything. Otherwise a
// live ephemeral entry for the command denies with its expiry. Otherwise, if
// the actor already tracks maxTracked live entries, a durable blanket
// cooldown is installed once and reported, rather than multiplying timers.
// Otherwise a new ephemeral entry of defaultDuration is installed and the
// attempt is allowed.
//
// Existing ephemeral entries are left in place when the blanket is installed;
// the dominance rule makes them unreachable until they lapse on their own.
func (l *Limiter) CheckCommand(actorID, commandID string, defaultDuration time.Duration) (Decision, error) {
	blanketExpiry, err := l.store.GetDurableCooldown(actorID)
	if err != nil {
		return Decision{}, errors.Wrap(err, "check durable cooldown")
	}
	if !blanketExpiry.IsZero() {
		return Decision{Allowed: false, RetryAt: blanketExpiry}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	commands := l.ephemeral[actorID]

	// Lazy reap: an expired entry is absent, whatever the removal timer is
	// up to.
	live := 0
	for cmd, expiry := range commands {
		if now.Before(expiry) {
			live++
		} else {
			delete(commands, cmd)
		}
	}

	if expiry, ok := commands[commandID]; ok {
		return Decision{Allowed: false, RetryAt: expiry}, nil
	}

	if live >= l.maxTracked {
		retryAt := now.Add(l.blanket)
		if err := l.store.SetDurableCooldown(actorID, retryAt, durablePurgeSlack); err != nil {
			return Decision{}, errors.Wrap(err, "install blanket cooldown")
		}
		slog.Debug("Blanket cooldown installed", "actor", actorID, "until", retryAt)
		return Decision{Allowed: false, RetryAt: retryAt}, nil
	}

	if commands == nil {
		commands = make(map[string]time.Time)
		l.ephemeral[actorID] = commands
	}
	expiry := now.Add(defaultDuration)
	commands[commandID] = expiry

	time.AfterFunc(defaultDuration+removalSlack, func() {
		l.remove(actorID, commandID)
	})

	return Decision{Allowed: true}, nil
}

// remove drops an ephemeral entry once it has actually expired. A fresh entry
// installed under the same key in the meantime survives.
func (l *Limiter) remove(actorID, commandID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	commands, ok := l.ephemeral[actorID]
	if !ok {
		return
	}
	if expiry, ok := commands[commandID]; ok && !l.now().Before(expiry) {
		delete(commands, commandID)
	}
	if len(commands) == 0 {
		delete(l.ephemeral, actorID)
	}
}

// TrackedCount reports how many live ephemeral entries an actor has.
func (l *Limiter) TrackedCount(actorID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	count := 0
	for _, expiry := range l.ephemeral[actorID] {
		if now.Before(expiry) {
			count++
		}
	}
	return count
}
