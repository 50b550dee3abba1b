package transport

import (
	"context"

	"github.com/tarmacbot/tarmac/internal/gateway/event"
)

// EventHandler is the callback adapters invoke for every inbound interaction.
// This avoids a circular dependency between adapters and the dispatcher.
type EventHandler func(ctx context.Context, evt *event.Event) error

// MessageRef identifies one rendered message on a platform.
type MessageRef struct {
	Channel string `json:"channel"`
	ID      string `json:"id"`
}

// Transport is the narrow outbound capability the gateway renders through.
type Transport interface {
	// Name returns the transport name (e.g. "telegram", "slack").
	Name() string

	// Send renders a new message into a channel.
	Send(ctx context.Context, channel string, r Render) (MessageRef, error)

	// Edit re-renders an existing message in place.
	Edit(ctx context.Context, ref MessageRef, r Render) error

	// Disable re-renders the message with every interactive component
	// disabled. Called exactly once, when a session closes.
	Disable(ctx context.Context, ref MessageRef, r Render) error

	// DM delivers a message directly to an actor.
	DM(ctx context.Context, actorID string, r Render) (MessageRef, error)

	// Health checks if the transport can reach its platform.
	Health(ctx context.Context) error
}

// Listener is a transport that also receives inbound platform events and
// feeds them to the gateway through an EventHandler.
type Listener interface {
	Transport

	// Start begins listening (long-poll or HTTP server). Must respect
	// context cancellation.
	Start(ctx context.Context) error

	// Stop gracefully shuts the listener down.
	Stop(ctx context.Context) error
}
