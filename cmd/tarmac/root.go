package main

import (
	"fmt"
	"os"

	"github.com/tarmacbot/tarmac/internal/config"
	"github.com/tarmacbot/tarmac/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tarmac",
	Short: "Tarmac chat-bot gateway",
	Long:  `Tarmac is a chat-bot daemon that answers player commands for an airline-management game through Telegram and Slack.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tarmac/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store.path", "", "data directory (default is $HOME/.tarmac/data)")
}
