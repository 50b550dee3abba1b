// Package commands holds the builtin player and operator commands wired onto
// the gateway dispatcher.
package commands

import (
	"time"

	"github.com/tarmacbot/tarmac/internal/gateway/deferred"
	"github.com/tarmacbot/tarmac/internal/gateway/dispatch"
	"github.com/tarmacbot/tarmac/internal/gateway/guard"
)

// Deps carries the gateway capabilities the builtin commands need beyond what
// the dispatcher passes in each invocation.
type Deps struct {
	Guard          *guard.Guard
	Scheduler      *deferred.Scheduler
	ConfirmTimeout time.Duration
}

// Register installs every builtin command on the dispatcher.
func Register(d *dispatch.Dispatcher, deps *Deps) {
	d.Register(helpCommand())
	d.Register(statsCommand())
	d.Register(giveawayCommand(deps))
	d.Register(remindCommand(deps))
	d.Register(giveawayCancelCommand(deps))
	d.Register(warnCommand(deps))
	d.Register(muteCommand(deps))
}
