package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/executor/broker/mtbridge"
	"github.com/rustyeddy/executor/config"
	"github.com/rustyeddy/executor/engine"
	"github.com/rustyeddy/executor/gateway"
	"github.com/rustyeddy/executor/journal"
	"github.com/rustyeddy/executor/notify"
	"github.com/rustyeddy/executor/risk"
	"github.com/rustyeddy/executor/store"
	"github.com/rustyeddy/executor/wait"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the bridge and trade the configured symbol",
	RunE:  runExecutor,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runExecutor(cmd *cobra.Command, args []string) error {
	// A missing .env is fine; real deployments export the variables.
	_ = godotenv.Load()

	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if symbol == "" {
		return fmt.Errorf("--symbol is required")
	}
	params, err := cfg.ParamsFor(symbol)
	if err != nil {
		return err
	}

	log := newLogger(cfg.Log.Level).With().Str("symbol", symbol).Logger()

	var notifier notify.Notifier = notify.LogNotifier{Log: log}
	if env.MailConfigured() {
		notifier = notify.Multi{
			notify.LogNotifier{Log: log},
			&notify.SMTPNotifier{
				Host:     env.SMTPHost,
				Port:     env.SMTPPort,
				From:     env.EmailFrom,
				To:       env.EmailTo,
				Password: env.SMTPPassword,
				Log:      log,
			},
		}
	}

	jnl, err := buildJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer jnl.Close()

	waiter := wait.Clock{
		ShortD:  time.Duration(cfg.Waits.Short),
		MiddleD: time.Duration(cfg.Waits.Middle),
		LongD:   time.Duration(cfg.Waits.Long),
		SuperD:  time.Duration(cfg.Waits.Super),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridge := mtbridge.New(env.BridgeURL, time.Duration(cfg.Waits.Middle), log)
	if err := bridge.Connect(ctx); err != nil {
		return err
	}
	defer bridge.Close()

	eng := engine.New(engine.Deps{
		Symbol:  symbol,
		Params:  params,
		Trading: cfg.Trading,

		Log:      log,
		Broker:   bridge,
		Gateway:  gateway.New(symbol, bridge, log, notifier, waiter, cfg.Trading.FailMax),
		Governor: risk.NewGovernor(riskPolicy(cfg), log, notifier),
		Store:    store.New(cfg.Store.Dir, symbol),
		Journal:  jnl,
		Notifier: notifier,
		Waiter:   waiter,
	})

	err = eng.Run(ctx)
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("executor terminated")
		return err
	}
	log.Info().Msg("executor stopped")
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgFile)
}

func riskPolicy(cfg *config.Config) risk.Policy {
	return risk.Policy{
		BalanceBegin: cfg.Account.BalanceBegin,
		ShrinkLimit:  cfg.Account.ShrinkLimit,
		MarginLimit:  cfg.Account.MarginLimit,
	}
}

func buildJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		return journal.NewCSV(jc.EventsFile, jc.EquityFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "none", "":
		return journal.Nop{}, nil
	}
	return nil, fmt.Errorf("unknown journal type %q", jc.Type)
}
