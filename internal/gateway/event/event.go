package event

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type Kind string

const (
	KindCommand      Kind = "command"      // slash command invocation
	KindComponent    Kind = "component"    // button press / select choice on a rendered message
	KindAutocomplete Kind = "autocomplete" // typeahead query, must stay cheap
	KindSystem       Kind = "system"       // internal (recovery sweep, heartbeat)
)

// Event is the normalized data structure for all inbound interactions.
type Event struct {
	// Identity
	ID     string `json:"id"`     // ULID
	Source string `json:"source"` // "telegram", "slack", "sweep"

	// Who and where
	ActorID string `json:"actor_id"`
	Channel string `json:"channel"` // chat/channel the event came from

	// Classification
	Kind Kind `json:"kind"`

	// Command payload
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	// Component payload
	ComponentID string `json:"component_id,omitempty"`
	Value       string `json:"value,omitempty"` // selected option, if any
	MessageID   string `json:"message_id,omitempty"`

	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// New creates a normalized event with a fresh ULID.
func New(source string, kind Kind, actorID, channel string) *Event {
	return &Event{
		ID:        ulid.Make().String(),
		Source:    source,
		Kind:      kind,
		ActorID:   actorID,
		Channel:   channel,
		CreatedAt: time.Now(),
	}
}
