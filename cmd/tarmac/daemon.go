package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/tarmacbot/tarmac/internal/commands"
	"github.com/tarmacbot/tarmac/internal/concurrency"
	"github.com/tarmacbot/tarmac/internal/config"
	"github.com/tarmacbot/tarmac/internal/gateway/deferred"
	"github.com/tarmacbot/tarmac/internal/gateway/dispatch"
	"github.com/tarmacbot/tarmac/internal/gateway/event"
	"github.com/tarmacbot/tarmac/internal/gateway/guard"
	"github.com/tarmacbot/tarmac/internal/gateway/ratelimit"
	"github.com/tarmacbot/tarmac/internal/gateway/session"
	"github.com/tarmacbot/tarmac/internal/store"
	"github.com/tarmacbot/tarmac/internal/transport"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the Tarmac gateway daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon() error {
	sig := NewSignalHandler(context.Background())
	sig.Start()
	defer sig.Stop()
	ctx := sig.Context()

	dataPath, err := store.ResolveDataPath(cfg.Store.Path)
	if err != nil {
		return err
	}

	lockCfg, err := fileLockConfig(cfg.Store)
	if err != nil {
		return err
	}

	st, err := store.New(dataPath, lockCfg)
	if err != nil {
		return err
	}
	defer st.Close()

	g := guard.New(st)

	limiter, err := ratelimit.New(st, cfg.Gateway)
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(cfg.Gateway)
	if err != nil {
		return err
	}

	identity, err := deferred.LoadOrCreateIdentity(filepath.Join(dataPath, "age.key"))
	if err != nil {
		return err
	}

	dispatcher, err := dispatch.New(g, limiter, sessions, cfg.Gateway)
	if err != nil {
		return err
	}

	handler := func(ctx context.Context, evt *event.Event) error {
		dispatcher.Dispatch(ctx, evt)
		return nil
	}

	var listeners []transport.Listener
	if cfg.Adapters.Telegram.Enabled {
		listeners = append(listeners, transport.NewTelegramTransport(
			cfg.Adapters.Telegram.BotToken, handler, cfg.Adapters.Telegram.UpdateTimeout))
	}
	if cfg.Adapters.Slack.Enabled {
		listeners = append(listeners, transport.NewSlackTransport(
			cfg.Adapters.Slack.Port, cfg.Adapters.Slack.SigningSecret,
			cfg.Adapters.Slack.BotToken, handler))
	}
	if len(listeners) == 0 {
		return fmt.Errorf("no adapters enabled; enable at least one of adapters.telegram or adapters.slack")
	}

	scheduler, err := deferred.NewScheduler(st, listeners[0], identity, cfg.Deferred)
	if err != nil {
		return err
	}

	for _, tr := range listeners {
		dispatcher.RegisterTransport(tr)
		scheduler.RegisterTransport(tr)
	}

	confirmTimeout, err := config.DurationOrDefault(cfg.Gateway.ConfirmTimeout, config.DefaultConfirmTimeout)
	if err != nil {
		return err
	}
	commands.Register(dispatcher, &commands.Deps{
		Guard:          g,
		Scheduler:      scheduler,
		ConfirmTimeout: confirmTimeout,
	})

	for _, tr := range listeners {
		l := tr
		concurrency.SafeGo(func() {
			if err := l.Start(ctx); err != nil {
				slog.Error("Adapter failed", "adapter", l.Name(), "error", err)
			}
		})
	}

	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	slog.Info("Tarmac daemon running", "data", dataPath, "adapters", len(listeners))
	<-ctx.Done()

	shutdownTimeout, err := config.DurationOrDefault(cfg.Server.ShutdownTimeout, config.DefaultServerShutdownTimeout)
	if err != nil {
		shutdownTimeout = 0
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sessions.CloseAll(shutdownCtx)
	scheduler.Stop()
	for _, tr := range listeners {
		if err := tr.Stop(shutdownCtx); err != nil {
			slog.Warn("Adapter shutdown failed", "adapter", tr.Name(), "error", err)
		}
	}

	slog.Info("Tarmac daemon stopped")
	return nil
}

func fileLockConfig(sc config.StoreConfig) (*store.FileLockConfig, error) {
	timeout, err := config.DurationOrDefault(sc.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		return nil, err
	}
	retry, err := config.DurationOrDefault(sc.LockRetry, config.DefaultStoreLockRetry)
	if err != nil {
		return nil, err
	}
	maxRetry := sc.LockMaxRetry
	if maxRetry <= 0 {
		maxRetry = config.DefaultStoreLockMaxRetry
	}
	return &store.FileLockConfig{
		LockTimeout:  timeout,
		LockRetry:    retry,
		LockMaxRetry: maxRetry,
	}, nil
}
