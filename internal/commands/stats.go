package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/gateway/dispatch"
	"github.com/tarmacbot/tarmac/internal/gateway/session"
	"github.com/tarmacbot/tarmac/internal/store"
)

func statsCommand() *dispatch.Command {
	return &dispatch.Command{
		Name: "stats",
		Handler: func(ctx context.Context, inv *dispatch.Invocation) error {
			v := session.NewViewSwitch([]session.View{
				{Key: "usage", Label: "Usage", Text: usageView(inv.Actor)},
				{Key: "standing", Label: "Standing", Text: standingView(inv.Actor)},
			})
			_, err := inv.Sessions.Open(ctx, inv.Transport, inv.Event.Channel, inv.Event.ActorID, v, session.Options{})
			return errors.Wrap(err, "open stats")
		},
	}
}

func usageView(a *store.Actor) string {
	if len(a.Usage) == 0 {
		return "No commands used yet."
	}

	names := make([]string, 0, len(a.Usage))
	for name := range a.Usage {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("*Command usage*\n")
	for _, name := range names {
		fmt.Fprintf(&b, "\n/%s: %d", name, a.Usage[name])
	}
	return b.String()
}

func standingView(a *store.Actor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Standing*\n\nMember since %s.", a.CreatedAt.Format("2006-01-02"))

	if a.AdminLevel > 0 {
		fmt.Fprintf(&b, "\nOperator level %d.", a.AdminLevel)
	}

	if len(a.Warnings) == 0 {
		b.WriteString("\nNo warnings on record.")
		return b.String()
	}

	fmt.Fprintf(&b, "\n%d warning(s):", len(a.Warnings))
	for _, w := range a.Warnings {
		fmt.Fprintf(&b, "\n- %s (%s)", w.Reason, w.At.Format("2006-01-02"))
	}
	return b.String()
}
