package transport

import (
	"context"
	"fmt"
	"sync"
)

// NullTransport records every call; used in tests and as the sink for
// system-originated renders.
type NullTransport struct {
	name string

	mu       sync.Mutex
	nextID   int
	Sent     []SentMessage
	Edits    []SentMessage
	Disables []SentMessage
	DMs      []SentMessage

	// FailSends / FailEdits make the corresponding calls error, for
	// exercising transient-failure paths.
	FailSends bool
	FailEdits bool
}

type SentMessage struct {
	Ref    MessageRef
	Render Render
}

func NewNullTransport(name string) *NullTransport {
	if name == "" {
		name = "null"
	}
	return &NullTransport{name: name}
}

func (n *NullTransport) Name() string {
	return n.name
}

func (n *NullTransport) Send(ctx context.Context, channel string, r Render) (MessageRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailSends {
		return MessageRef{}, fmt.Errorf("null transport: send unavailable")
	}
	n.nextID++
	ref := MessageRef{Channel: channel, ID: fmt.Sprintf("msg-%d", n.nextID)}
	n.Sent = append(n.Sent, SentMessage{Ref: ref, Render: r})
	return ref, nil
}

func (n *NullTransport) Edit(ctx context.Context, ref MessageRef, r Render) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailEdits {
		return fmt.Errorf("null transport: edit unavailable")
	}
	n.Edits = append(n.Edits, SentMessage{Ref: ref, Render: r})
	return nil
}

func (n *NullTransport) Disable(ctx context.Context, ref MessageRef, r Render) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailEdits {
		return fmt.Errorf("null transport: edit unavailable")
	}
	n.Disables = append(n.Disables, SentMessage{Ref: ref, Render: r.Disabled()})
	return nil
}

func (n *NullTransport) DM(ctx context.Context, actorID string, r Render) (MessageRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.FailSends {
		return MessageRef{}, fmt.Errorf("null transport: send unavailable")
	}
	n.nextID++
	ref := MessageRef{Channel: "dm:" + actorID, ID: fmt.Sprintf("msg-%d", n.nextID)}
	n.DMs = append(n.DMs, SentMessage{Ref: ref, Render: r})
	return ref, nil
}

func (n *NullTransport) Health(ctx context.Context) error {
	return nil
}

// LastEdit returns the most recent edit, or nil.
func (n *NullTransport) LastEdit() *SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Edits) == 0 {
		return nil
	}
	return &n.Edits[len(n.Edits)-1]
}
