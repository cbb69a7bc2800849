package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/executor/broker"
	"github.com/rustyeddy/executor/broker/sim"
	"github.com/rustyeddy/executor/config"
	"github.com/rustyeddy/executor/engine"
	"github.com/rustyeddy/executor/gateway"
	"github.com/rustyeddy/executor/journal"
	"github.com/rustyeddy/executor/market"
	"github.com/rustyeddy/executor/notify"
	"github.com/rustyeddy/executor/risk"
	"github.com/rustyeddy/executor/store"
	"github.com/rustyeddy/executor/wait"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk the position lifecycle against the in-memory broker",
	Long: `demo scripts a short market: a downtrend, a reversal into an uptrend,
and a favorable run after entry. It drives the engine one cycle at a time and
prints the position state after each, ending with a protected position.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	log := newLogger("warn")

	dir, err := os.MkdirTemp("", "executor-demo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	info := market.SymbolInfo{Name: "DEMO", Digits: 2, TickSize: 0.01, TickValue: 1}
	brk := sim.NewEngine(broker.Account{Balance: 10000, Equity: 10000, MarginUsed: 100}, info)

	cfg := config.Default()
	cfg.Trading.ATRBars = 14
	params := config.ParameterSet{
		TimingFast: 3, TimingSlow: 8,
		PositioningFast: 3, PositioningSlow: 8,
		DirectionFast: 3, DirectionSlow: 8,
		StopAmount: 50,
	}

	notifier := notify.LogNotifier{Log: log}
	waiter := wait.Clock{} // zero durations, the demo never actually sleeps

	eng := engine.New(engine.Deps{
		Symbol:  "DEMO",
		Params:  params,
		Trading: cfg.Trading,

		Log:      log,
		Broker:   brk,
		Gateway:  gateway.New("DEMO", brk, log, notifier, waiter, cfg.Trading.FailMax),
		Governor: risk.NewGovernor(risk.Policy{BalanceBegin: 10000, ShrinkLimit: 0.3, MarginLimit: 2}, log, notifier),
		Store:    store.New(dir, "DEMO"),
		Journal:  journal.Nop{},
		Notifier: notifier,
		Waiter:   waiter,
	})

	ctx := context.Background()
	cycle := func(phase string) error {
		if err := eng.Cycle(ctx); err != nil {
			return err
		}
		p := eng.Position()
		fmt.Printf("%-28s state=%-9s ticket=%-5d cross=%s\n",
			phase, p.State(), p.Ticket, eng.Detector().Cross())
		return nil
	}

	// Downtrend: the positioning cross settles on sell.
	closes := ramp(101.0, -0.10, 40)
	brk.SetCandles(candles(closes))
	brk.SetTick(quote(closes[len(closes)-1]))
	for i := 0; i < 2; i++ {
		if err := cycle("downtrend"); err != nil {
			return err
		}
	}

	// Reversal: fast averages pull above slow, latching a buy wait and then
	// confirming the entry.
	closes = append(closes, ramp(closes[len(closes)-1], 0.15, 30)...)
	brk.SetCandles(candles(closes))
	brk.SetTick(quote(closes[len(closes)-1]))
	for i := 0; i < 3; i++ {
		if err := cycle("uptrend reversal"); err != nil {
			return err
		}
	}

	// Favorable run: price clears the break-even trigger, the stop moves.
	last := closes[len(closes)-1]
	brk.SetTick(quote(last + 2.0))
	if err := cycle("favorable run"); err != nil {
		return err
	}

	return nil
}

func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i+1)
	}
	return out
}

func candles(closes []float64) []market.Candle {
	t := time.Now().UTC().Add(-time.Duration(len(closes)) * time.Minute)
	out := make([]market.Candle, len(closes))
	prev := closes[0]
	for i, c := range closes {
		out[i] = market.Candle{
			Time:  t.Add(time.Duration(i) * time.Minute),
			Open:  prev,
			High:  max(prev, c) + 0.05,
			Low:   min(prev, c) - 0.05,
			Close: c,
		}
		prev = c
	}
	return out
}

func quote(mid float64) market.Tick {
	return market.Tick{Bid: mid - 0.01, Ask: mid + 0.01, Time: time.Now().UTC()}
}
