package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tarmacbot/tarmac/internal/concurrency"
	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/gateway/deferred"
	"github.com/tarmacbot/tarmac/internal/gateway/dispatch"
	"github.com/tarmacbot/tarmac/internal/gateway/session"
	"github.com/tarmacbot/tarmac/internal/transport"
)

func giveawayCommand(deps *Deps) *dispatch.Command {
	return &dispatch.Command{
		Name: "giveaway",
		Handler: func(ctx context.Context, inv *dispatch.Invocation) error {
			args := inv.Event.Args
			if len(args) < 3 {
				return errors.InvalidInput("usage: /giveaway <minutes> <prize> <player> [player ...]")
			}

			minutes, err := strconv.Atoi(args[0])
			if err != nil || minutes <= 0 {
				return errors.InvalidInput("minutes must be a positive number")
			}
			prize := args[1]
			participants := args[2:]
			target := time.Now().Add(time.Duration(minutes) * time.Minute)

			gate := session.NewConfirmGate(fmt.Sprintf(
				"Raffle a prize among %d player(s), drawing in %d minute(s)?",
				len(participants), minutes,
			))

			_, err = inv.Sessions.Open(ctx, inv.Transport, inv.Event.Channel, inv.Event.ActorID, gate,
				session.Options{IdleTimeout: deps.ConfirmTimeout})
			if err != nil {
				return errors.Wrap(err, "open confirmation")
			}

			// The wait must not happen on the dispatch path: the confirm
			// button press is itself dispatched for this actor and would
			// deadlock behind us.
			evt := inv.Event
			tr := inv.Transport
			concurrency.SafeGo(func() {
				if !(<-gate.Done()).Accepted() {
					return
				}

				bg := context.Background()
				id, err := deps.Scheduler.Schedule(bg, deferred.KindGiveaway,
					evt.Source, evt.Channel, evt.ActorID, target, prize, participants)
				if err != nil {
					slog.Error("Failed to schedule giveaway", "actor", evt.ActorID, "error", err)
					tr.Send(bg, evt.Channel, transport.Render{Text: "Could not schedule the giveaway."})
					return
				}

				tr.Send(bg, evt.Channel, transport.Render{Text: fmt.Sprintf(
					"Giveaway on. Drawing at %s. Operators can scrap it with /giveaway-cancel %s",
					target.Format("15:04"), id,
				)})
			})

			return nil
		},
	}
}

func giveawayCancelCommand(deps *Deps) *dispatch.Command {
	return &dispatch.Command{
		Name:      "giveaway-cancel",
		AdminOnly: true,
		Handler: func(ctx context.Context, inv *dispatch.Invocation) error {
			if len(inv.Event.Args) != 1 {
				return errors.InvalidInput("usage: /giveaway-cancel <id>")
			}
			id := inv.Event.Args[0]

			if err := deps.Scheduler.Cancel(ctx, id); err != nil {
				return errors.Wrap(err, "cancel giveaway")
			}

			_, err := inv.Transport.Send(ctx, inv.Event.Channel, transport.Render{
				Text: "Giveaway " + id + " scrapped.",
			})
			return err
		},
	}
}
