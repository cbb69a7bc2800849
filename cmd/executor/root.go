package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	symbol  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "executor",
	Short: "Single-symbol strategy executor",
	Long: `executor runs one trading strategy against one symbol: moving-average
signal detection, a position lifecycle with break-even protection, account
level risk limits, and crash-safe position persistence.

Orders reach the market through a websocket bridge to the terminal that owns
the trading session. Credentials and the bridge endpoint come from
EXECUTOR_-prefixed environment variables (a .env file is honored).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVarP(&symbol, "symbol", "s", "", "symbol to trade")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}

func newLogger(level string) zerolog.Logger {
	if verbose {
		level = "debug"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
