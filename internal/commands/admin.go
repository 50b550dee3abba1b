package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tarmacbot/tarmac/internal/errors"
	"github.com/tarmacbot/tarmac/internal/gateway/dispatch"
	"github.com/tarmacbot/tarmac/internal/transport"
)

func warnCommand(deps *Deps) *dispatch.Command {
	return &dispatch.Command{
		Name:      "warn",
		AdminOnly: true,
		Handler: func(ctx context.Context, inv *dispatch.Invocation) error {
			args := inv.Event.Args
			if len(args) < 2 {
				return errors.InvalidInput("usage: /warn <player> <reason ...>")
			}
			target := args[0]
			reason := strings.Join(args[1:], " ")

			if err := deps.Guard.Warn(ctx, target, reason); err != nil {
				return errors.Wrap(err, "record warning")
			}

			_, err := inv.Transport.Send(ctx, inv.Event.Channel, transport.Render{
				Text: fmt.Sprintf("Warning recorded for %s.", target),
			})
			return err
		},
	}
}

func muteCommand(deps *Deps) *dispatch.Command {
	return &dispatch.Command{
		Name:      "mute",
		AdminOnly: true,
		Handler: func(ctx context.Context, inv *dispatch.Invocation) error {
			args := inv.Event.Args
			if len(args) != 2 {
				return errors.InvalidInput("usage: /mute <player> <minutes>")
			}
			target := args[0]

			minutes, err := strconv.Atoi(args[1])
			if err != nil || minutes <= 0 {
				return errors.InvalidInput("minutes must be a positive number")
			}
			until := time.Now().Add(time.Duration(minutes) * time.Minute)

			if err := deps.Guard.Mute(ctx, target, until); err != nil {
				return errors.Wrap(err, "apply mute")
			}

			_, err = inv.Transport.Send(ctx, inv.Event.Channel, transport.Render{
				Text: fmt.Sprintf("%s muted until %s.", target, until.Format("15:04")),
			})
			return err
		},
	}
}
