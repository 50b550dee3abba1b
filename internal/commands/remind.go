package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/gateway/deferred"
	"github.com/tarmacbot/tarmac/internal/gateway/dispatch"
	"github.com/tarmacbot/tarmac/internal/transport"
)

func remindCommand(deps *Deps) *dispatch.Command {
	return &dispatch.Command{
		Name: "remind",
		Handler: func(ctx context.Context, inv *dispatch.Invocation) error {
			args := inv.Event.Args
			if len(args) < 2 {
				return errors.InvalidInput("usage: /remind <minutes> <text ...>")
			}

			minutes, err := strconv.Atoi(args[0])
			if err != nil || minutes <= 0 {
				return errors.InvalidInput("minutes must be a positive number")
			}
			text := strings.Join(args[1:], " ")
			target := time.Now().Add(time.Duration(minutes) * time.Minute)

			_, err = deps.Scheduler.Schedule(ctx, deferred.KindNotice,
				inv.Event.Source, inv.Event.Channel, inv.Event.ActorID, target, text, nil)
			if err != nil {
				return errors.Wrap(err, "schedule reminder")
			}

			_, err = inv.Transport.Send(ctx, inv.Event.Channel, transport.Render{
				Text: fmt.Sprintf("Reminder set for %s.", target.Format("15:04")),
			})
			return err
		},
	}
}
