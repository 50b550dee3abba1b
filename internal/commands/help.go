package commands

import (
	"context"

	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/gateway/dispatch"
	"github.com/tarmacbot/tarmac/internal/gateway/session"
)

var helpPages = []string{
	`*Tarmac* answers your airline's radio.

/help            this guide
/stats           your usage and standing
/giveaway        raffle a prize among players
/remind          schedule a channel notice

Flip through the pages below for details.`,

	`*Giveaways*

/giveaway <minutes> <prize> <player> [player ...]

Schedules a draw. You confirm first; the winner is picked
at random when the timer runs out and receives the prize
by direct message. The prize text is never posted in the
channel.`,

	`*Reminders*

/remind <minutes> <text ...>

Posts the text back into this channel after the delay.
Reminders survive a bot restart.`,

	`*Operator commands*

/warn <player> <reason ...>    record a warning
/mute <player> <minutes>       suspend a player
/giveaway-cancel <id>          scrap a scheduled draw

These require operator access.`,
}

func helpCommand() *dispatch.Command {
	return &dispatch.Command{
		Name: "help",
		Handler: func(ctx context.Context, inv *dispatch.Invocation) error {
			p := session.NewPaginator(helpPages).WithLargeStep(len(helpPages))
			_, err := inv.Sessions.Open(ctx, inv.Transport, inv.Event.Channel, inv.Event.ActorID, p, session.Options{})
			return errors.Wrap(err, "open help")
		},
	}
}
