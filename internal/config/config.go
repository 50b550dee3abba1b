package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tarmacbot/tarmac/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Adapters AdaptersConfig `koanf:"adapters"`
	Store    StoreConfig    `koanf:"store"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Deferred DeferredConfig `koanf:"deferred"`
}

type ServerConfig struct {
	LogLevel        string `koanf:"log_level"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type AdaptersConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type SlackConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Port          int    `koanf:"port"`
	SigningSecret string `koanf:"signing_secret"`
	BotToken      string `koanf:"bot_token"`
}

type TelegramConfig struct {
	Enabled       bool   `koanf:"enabled"`
	BotToken      string `koanf:"bot_token"`
	UpdateTimeout int    `koanf:"update_timeout"`
}

type StoreConfig struct {
	Path         string `koanf:"path"`
	LockTimeout  string `koanf:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry"`
	LockMaxRetry int    `koanf:"lock_max_retry"`
}

type GatewayConfig struct {
	MaxTrackedCooldowns    int    `koanf:"max_tracked_cooldowns"`
	BlanketCooldown        string `koanf:"blanket_cooldown"`
	DefaultCommandCooldown string `koanf:"default_command_cooldown"`
	SessionIdleTimeout     string `koanf:"session_idle_timeout"`
	SessionHardTimeout     string `koanf:"session_hard_timeout"`
	ConfirmTimeout         string `koanf:"confirm_timeout"`
}

type DeferredConfig struct {
	SweepSchedule  string `koanf:"sweep_schedule"`
	SweepLookahead string `koanf:"sweep_lookahead"`
}

const (
	DefaultServerLogLevel        = "info"
	DefaultServerShutdownTimeout = "5s"

	DefaultSlackPort             = 3000
	DefaultTelegramUpdateTimeout = 60

	DefaultStoreLockTimeout  = "30s"
	DefaultStoreLockRetry    = "100ms"
	DefaultStoreLockMaxRetry = 300

	DefaultMaxTrackedCooldowns    = 3
	DefaultBlanketCooldown        = "2m"
	DefaultCommandCooldown        = "30s"
	DefaultSessionIdleTimeout     = "2m"
	DefaultSessionHardTimeout     = "15m"
	DefaultConfirmTimeout         = "30s"
	DefaultDeferredSweepSchedule  = "@every 1m"
	DefaultDeferredSweepLookahead = "5s"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.log_level":                 DefaultServerLogLevel,
		"server.shutdown_timeout":          DefaultServerShutdownTimeout,
		"adapters.slack.port":              DefaultSlackPort,
		"adapters.telegram.update_timeout": DefaultTelegramUpdateTimeout,
		"store.path":                       "",
		"store.lock_timeout":               DefaultStoreLockTimeout,
		"store.lock_retry":                 DefaultStoreLockRetry,
		"store.lock_max_retry":             DefaultStoreLockMaxRetry,
		"gateway.max_tracked_cooldowns":    DefaultMaxTrackedCooldowns,
		"gateway.blanket_cooldown":         DefaultBlanketCooldown,
		"gateway.default_command_cooldown": DefaultCommandCooldown,
		"gateway.session_idle_timeout":     DefaultSessionIdleTimeout,
		"gateway.session_hard_timeout":     DefaultSessionHardTimeout,
		"gateway.confirm_timeout":          DefaultConfirmTimeout,
		"deferred.sweep_schedule":          DefaultDeferredSweepSchedule,
		"deferred.sweep_lookahead":         DefaultDeferredSweepLookahead,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".tarmac", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("TARMAC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TARMAC_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.Store.Path != "" {
		expanded, err := pathutil.Expand(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		cfg.Store.Path = expanded
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" && cfg.Adapters.Telegram.BotToken == "" {
		cfg.Adapters.Telegram.BotToken = token
	}
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" && cfg.Adapters.Slack.BotToken == "" {
		cfg.Adapters.Slack.BotToken = token
	}

	return &cfg, nil
}
