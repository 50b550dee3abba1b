package deferred

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"filippo.io/age"

	"github.com/tarmacbot/tarmac/internal/config"
	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/store"
	"github.com/tarmacbot/tarmac/internal/transport"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
)

const (
	KindGiveaway = "giveaway"
	KindNotice   = "notice"
)

// ActionStore is the slice of the durable store the scheduler needs. The
// conditional transition is what makes fire safe to invoke redundantly.
type ActionStore interface {
	PutDeferred(a *store.DeferredAction) error
	DeleteDeferred(id string) error
	TransitionDeferred(id string) (*store.DeferredAction, store.TransitionOutcome, error)
	ListPendingDeferred(cutoff time.Time) ([]*store.DeferredAction, error)
}

// Scheduler owns long-delay one-shot actions. Scheduling persists the record
// first, then arms a local timer; a cron sweep re-fires anything a dead
// process left behind. Both paths funnel into Fire, which is idempotent by
// the store's conditional transition.
type Scheduler struct {
	store      ActionStore
	transports map[string]transport.Transport
	fallback   transport.Transport
	identity   *age.X25519Identity
	schedule   string
	lookahead  time.Duration

	cron *cron.Cron

	mu      sync.Mutex
	timers  map[string]*time.Timer
	started bool

	// pick selects the winning index among n participants. Injectable for
	// tests; defaults to uniform random.
	pick func(n int) int
}

func NewScheduler(s ActionStore, fallback transport.Transport, identity *age.X25519Identity, cfg config.DeferredConfig) (*Scheduler, error) {
	lookahead, err := config.DurationOrDefault(cfg.SweepLookahead, config.DefaultDeferredSweepLookahead)
	if err != nil {
		return nil, err
	}

	schedule := cfg.SweepSchedule
	if schedule == "" {
		schedule = config.DefaultDeferredSweepSchedule
	}

	return &Scheduler{
		store:      s,
		transports: make(map[string]transport.Transport),
		fallback:   fallback,
		identity:   identity,
		schedule:   schedule,
		lookahead:  lookahead,
		timers:     make(map[string]*time.Timer),
		pick:       rand.Intn,
	}, nil
}

// RegisterTransport makes a transport available for completion effects,
// keyed by its name (matching the Source of scheduled actions).
func (s *Scheduler) RegisterTransport(tr transport.Transport) {
	s.transports[tr.Name()] = tr
}

func (s *Scheduler) transportFor(a *store.DeferredAction) transport.Transport {
	if tr, ok := s.transports[a.Source]; ok {
		return tr
	}
	return s.fallback
}

// Start re-arms timers for every pending record and begins the recovery
// sweep. Records already past due fire on the first sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	pending, err := s.store.ListPendingDeferred(time.Now().Add(100 * 365 * 24 * time.Hour))
	if err != nil {
		return errors.Wrap(err, "list pending actions")
	}
	for _, a := range pending {
		s.arm(ctx, a.ID, a.TargetTime)
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()

	s.Sweep(ctx)

	slog.Info("Deferred scheduler started", "pending", len(pending), "sweep", s.schedule)
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
	}
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.started = false
}

// Schedule persists a new action and arms its timer. The secret, if any, is
// encrypted before it touches disk. Returns the action id, which doubles as
// the cancel token.
func (s *Scheduler) Schedule(ctx context.Context, kind, source, channel, createdBy string, target time.Time, secret string, participants []string) (string, error) {
	a := &store.DeferredAction{
		ID:           ulid.Make().String(),
		Kind:         kind,
		TargetTime:   target,
		Status:       store.StatusPending,
		Participants: participants,
		Source:       source,
		Channel:      channel,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now(),
	}

	if secret != "" {
		encrypted, err := EncryptSecret(s.identity, secret)
		if err != nil {
			return "", errors.Wrap(err, "encrypt secret")
		}
		a.Secret = encrypted
	}

	if err := s.store.PutDeferred(a); err != nil {
		return "", errors.Wrap(err, "persist deferred action")
	}

	s.arm(ctx, a.ID, target)

	slog.Debug("Deferred action scheduled", "id", a.ID, "kind", kind, "target", target)
	return a.ID, nil
}

// Cancel deletes the persisted record. The local timer is stopped
// opportunistically, but correctness never depends on it: a timer that fires
// anyway observes the record missing and no-ops.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	if err := s.store.DeleteDeferred(id); err != nil {
		return errors.Wrap(err, "delete deferred action")
	}

	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	slog.Debug("Deferred action cancelled", "id", id)
	return nil
}

func (s *Scheduler) arm(ctx context.Context, id string, target time.Time) {
	delay := time.Until(target)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.Fire(context.Background(), id)
	})
	s.mu.Unlock()
}

// Fire attempts the conditional pending -> resolved transition and, on
// winning it, runs the completion effect. Losing the race (already resolved)
// or finding no record (cancelled) are expected no-ops, never errors; this
// is what makes a timer/sweep double-trigger harmless.
func (s *Scheduler) Fire(ctx context.Context, id string) {
	before, outcome, err := s.store.TransitionDeferred(id)
	if err != nil {
		slog.Error("Deferred transition failed", "id", id, "error", err)
		return
	}

	switch outcome {
	case store.AlreadyResolved:
		slog.Debug("Deferred action already resolved", "id", id)
		return
	case store.NotFound:
		slog.Debug("Deferred action gone, assuming cancelled", "id", id)
		return
	}

	s.complete(ctx, before)
}

func (s *Scheduler) complete(ctx context.Context, a *store.DeferredAction) {
	switch a.Kind {
	case KindGiveaway:
		s.completeGiveaway(ctx, a)
	case KindNotice:
		s.completeNotice(ctx, a)
	default:
		slog.Warn("Deferred action with unknown kind resolved as no-op", "id", a.ID, "kind", a.Kind)
	}
}

func (s *Scheduler) completeGiveaway(ctx context.Context, a *store.DeferredAction) {
	tr := s.transportFor(a)

	if len(a.Participants) == 0 {
		if _, err := tr.Send(ctx, a.Channel, transport.Render{
			Text: "The giveaway ended with no participants.",
		}); err != nil {
			slog.Error("Failed to announce empty giveaway", "id", a.ID, "error", err)
		}
		return
	}

	winner := a.Participants[s.pick(len(a.Participants))]

	secret, err := DecryptSecret(s.identity, a.Secret)
	if err != nil {
		slog.Error("Failed to decrypt giveaway secret", "id", a.ID, "error", err)
		return
	}

	if _, err := tr.DM(ctx, winner, transport.Render{
		Text: fmt.Sprintf("You won the giveaway! Your prize:\n%s", secret),
	}); err != nil {
		// Secrets are never dropped, only escalated: hand the prize to
		// the actor who scheduled the giveaway.
		slog.Warn("Winner delivery failed, escalating to fallback", "id", a.ID, "winner", winner, "error", err)
		if _, err := tr.DM(ctx, a.CreatedBy, transport.Render{
			Text: fmt.Sprintf("Could not deliver the prize to the winner (%s). Prize:\n%s", winner, secret),
		}); err != nil {
			slog.Error("Fallback delivery failed", "id", a.ID, "error", err)
		}
		return
	}

	if _, err := tr.Send(ctx, a.Channel, transport.Render{
		Text: fmt.Sprintf("The giveaway has ended. Congratulations to the winner, %s!", winner),
	}); err != nil {
		slog.Error("Failed to announce giveaway winner", "id", a.ID, "error", err)
	}
}

func (s *Scheduler) completeNotice(ctx context.Context, a *store.DeferredAction) {
	text, err := DecryptSecret(s.identity, a.Secret)
	if err != nil {
		slog.Error("Failed to decrypt notice payload", "id", a.ID, "error", err)
		return
	}
	if _, err := s.transportFor(a).Send(ctx, a.Channel, transport.Render{Text: text}); err != nil {
		slog.Error("Failed to deliver notice", "id", a.ID, "error", err)
	}
}

// Sweep fires every pending action already past its target and re-arms any
// coming due within the lookahead window (covering records orphaned by a
// restart). Nothing fires before its target time. Safe to run concurrently
// with local timers.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := time.Now()
	due, err := s.store.ListPendingDeferred(now.Add(s.lookahead))
	if err != nil {
		slog.Error("Deferred sweep failed", "error", err)
		return
	}

	for _, a := range due {
		if a.TargetTime.After(now) {
			s.arm(ctx, a.ID, a.TargetTime)
			continue
		}
		s.Fire(ctx, a.ID)
	}
}
