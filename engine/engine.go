// Package engine drives one symbol's position through its lifecycle:
// flat -> signaled -> open -> protected -> flat. It owns the Position, runs
// the per-cycle control flow, and is the only component that mutates state.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/executor/broker"
	"github.com/rustyeddy/executor/config"
	"github.com/rustyeddy/executor/gateway"
	"github.com/rustyeddy/executor/journal"
	"github.com/rustyeddy/executor/market"
	"github.com/rustyeddy/executor/notify"
	"github.com/rustyeddy/executor/pkg/id"
	"github.com/rustyeddy/executor/position"
	"github.com/rustyeddy/executor/risk"
	"github.com/rustyeddy/executor/signal"
	"github.com/rustyeddy/executor/store"
	"github.com/rustyeddy/executor/wait"
)

// Engine orchestrates a single symbol. One engine per process; cycles run
// strictly sequentially and no cycle begins before the prior persistence
// write completed.
type Engine struct {
	symbol  string
	params  config.ParameterSet
	trading config.TradingConfig

	log      zerolog.Logger
	broker   broker.Broker
	gateway  *gateway.Gateway
	governor *risk.Governor
	detector *signal.Detector
	store    *store.Store
	journal  journal.Journal
	notifier notify.Notifier
	waiter   wait.Waiter

	pos         position.Position
	snap        snapshot
	shownParams bool
}

// Deps bundles the collaborators built once per symbol process. Components
// are shared by reference; nothing here is reconstructed downstream.
type Deps struct {
	Symbol  string
	Params  config.ParameterSet
	Trading config.TradingConfig

	Log      zerolog.Logger
	Broker   broker.Broker
	Gateway  *gateway.Gateway
	Governor *risk.Governor
	Store    *store.Store
	Journal  journal.Journal
	Notifier notify.Notifier
	Waiter   wait.Waiter
}

func New(d Deps) *Engine {
	return &Engine{
		symbol:   d.Symbol,
		params:   d.Params,
		trading:  d.Trading,
		log:      d.Log,
		broker:   d.Broker,
		gateway:  d.Gateway,
		governor: d.Governor,
		detector: signal.NewDetector(),
		store:    d.Store,
		journal:  d.Journal,
		notifier: d.Notifier,
		waiter:   d.Waiter,
	}
}

// Position returns a copy of the current position snapshot.
func (e *Engine) Position() position.Position { return e.pos }

// Detector exposes the signal detector, mainly for tests and the demo.
func (e *Engine) Detector() *signal.Detector { return e.detector }

// Run resynchronizes against the persisted record, then polls cycles until a
// fatal condition or context cancellation. Fatal paths perform a best-effort
// liquidation before returning.
func (e *Engine) Run(ctx context.Context) error {
	if acct, err := e.broker.Account(ctx); err == nil {
		e.governor.LogBalanceReset(acct)
	} else {
		e.log.Warn().Err(err).Msg("account unavailable at startup")
	}

	e.Resync(ctx)

	for {
		if d := weekendPause(time.Now().UTC()); d > 0 {
			e.log.Warn().Dur("sleep", d).Msg("weekly pause window, sleeping until market open")
			e.waiter.Sleep(d)
			e.log.Warn().Msg("weekly pause over, resuming")
		}

		e.waiter.Wait(wait.Short)

		if err := e.Cycle(ctx); err != nil {
			e.shutdown(ctx, err)
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Resync restores the persisted position on process start. Absent or
// malformed records, and records whose ticket the broker no longer holds,
// reset to flat with a warning and a defensive flatten of anything stray.
func (e *Engine) Resync(ctx context.Context) {
	rec, err := e.store.Load()
	if err != nil {
		e.log.Warn().Err(err).Msg("no prior state, starting flat")
		e.clear(ctx, journal.EventLiquidate, "restart without record")
		return
	}

	if rec.Held() && e.ticketHeld(ctx, rec.Ticket) {
		e.pos = rec
		e.log.Info().
			Int64("ticket", rec.Ticket).
			Str("side", string(rec.Side)).
			Str("state", string(rec.State())).
			Msg("resumed persisted position")
		return
	}

	e.log.Warn().Int64("ticket", rec.Ticket).Msg("persisted ticket absent or stale, starting flat")
	e.clear(ctx, journal.EventLiquidate, "restart with stale ticket")
}

func (e *Engine) ticketHeld(ctx context.Context, ticket int64) bool {
	held, err := e.broker.Positions(ctx, e.symbol)
	if err != nil {
		e.log.Error().Err(err).Msg("position check failed")
		return false
	}
	for _, p := range held {
		if p.Ticket == ticket {
			return true
		}
	}
	return false
}

// shutdown is the fatal path: best-effort flatten, strong reminder, done.
func (e *Engine) shutdown(ctx context.Context, cause error) {
	e.log.Error().Err(cause).Msg("fatal condition, liquidating and terminating")
	e.gateway.LiquidateAll(ctx)
	e.gateway.CancelAllPending(ctx)
	e.pos.Reset()
	if err := e.store.Save(e.pos); err != nil {
		e.log.Error().Err(err).Msg("final persistence write failed")
	}
	if e.notifier != nil {
		msg := fmt.Sprintf("strategy %s terminated: %v", e.symbol, cause)
		if err := e.notifier.Strong(ctx, msg); err != nil {
			e.log.Warn().Err(err).Msg("strong reminder delivery failed")
		}
	}
}

// clear flattens any held or pending orders and resets the position and the
// detector's pending latches. Used for conditional clears (cross reversal),
// forced clears (margin flatten, restart), and the first-stop failure path.
func (e *Engine) clear(ctx context.Context, kind journal.EventKind, note string) {
	if e.pos.Held() {
		e.recordEvent(kind, e.pos.Ticket, e.pos.Side, 0, e.pos.OpenPrice, note)
	}
	e.gateway.LiquidateAll(ctx)
	e.gateway.CancelAllPending(ctx)
	e.pos.Reset()
	e.detector.ClearPending()
}

func (e *Engine) recordEvent(kind journal.EventKind, ticket int64, side market.Side, volume, price float64, note string) {
	err := e.journal.RecordEvent(journal.Event{
		ID:     id.New(),
		Time:   time.Now().UTC(),
		Symbol: e.symbol,
		Kind:   kind,
		Ticket: ticket,
		Side:   side,
		Volume: volume,
		Price:  price,
		Note:   note,
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("journal event write failed")
	}
}
