package store

import "time"

// --- Actors (actors.json) ---

type Warning struct {
	At     time.Time `json:"at"`
	Reason string    `json:"reason"`
}

// Actor is the durable record for an external user identity. Actors are
// created lazily on first observed event and never deleted.
type Actor struct {
	ID         string         `json:"id"`
	AdminLevel int            `json:"admin_level"`
	MuteUntil  *time.Time     `json:"mute_until,omitempty"`
	Warnings   []Warning      `json:"warnings,omitempty"`
	Usage      map[string]int `json:"usage,omitempty"` // command -> invocation count
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type actorIndex struct {
	Actors map[string]*Actor `json:"actors"`
}

// --- Durable cooldowns (cooldowns.json) ---

// CooldownEntry is a keyed expiry visible to every process. An entry whose
// expiry has passed is treated as absent and reaped on next read.
type CooldownEntry struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
	PurgeAt   time.Time `json:"purge_at"` // expiry + ttl slack, when the record itself is removed
}

type cooldownIndex struct {
	Entries map[string]*CooldownEntry `json:"entries"`
}

// --- Deferred actions (deferred.json) ---

type ActionStatus string

const (
	StatusPending  ActionStatus = "pending"
	StatusResolved ActionStatus = "resolved"
)

// DeferredAction is a persisted single-fire work item. Its ID doubles as the
// idempotency key: the only valid mutation is one conditional transition
// pending -> resolved.
type DeferredAction struct {
	ID           string       `json:"id"` // ULID
	Kind         string       `json:"kind"`
	TargetTime   time.Time    `json:"target_time"`
	Status       ActionStatus `json:"status"`
	Secret       string       `json:"secret,omitempty"` // age-encrypted, base64
	Participants []string     `json:"participants,omitempty"`
	Source       string       `json:"source"` // transport the outcome renders through
	Channel      string       `json:"channel"`
	CreatedBy    string       `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
}

type deferredIndex struct {
	Actions map[string]*DeferredAction `json:"actions"`
}

// TransitionOutcome reports what the conditional pending -> resolved update
// observed. AlreadyResolved and NotFound are expected outcomes, not errors.
type TransitionOutcome int

const (
	Transitioned TransitionOutcome = iota
	AlreadyResolved
	NotFound
)
