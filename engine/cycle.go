package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rustyeddy/executor/broker"
	"github.com/rustyeddy/executor/gateway"
	"github.com/rustyeddy/executor/indicators"
	"github.com/rustyeddy/executor/journal"
	"github.com/rustyeddy/executor/market"
	"github.com/rustyeddy/executor/signal"
)

// snapshot is recomputed every cycle and never persisted.
type snapshot struct {
	timingFast, timingSlow           float64
	positioningFast, positioningSlow float64
	directionFast, directionSlow     float64
	atr                              float64

	tick market.Tick
	info market.SymbolInfo

	stopDist       float64 // initial stop distance from entry
	crossBand      float64 // positioning-cross hysteresis half-width
	protectTrigger float64 // favorable move required before break-even
	protectMove    float64 // stop offset from entry once protected
	spreadLimit    float64 // max accepted bid/ask spread, price units
	deviationTicks int     // accepted fill deviation
	volume         float64 // order volume from the monetary stop amount

	valid bool // false when ATR or tick metadata is zero
}

// Cycle runs one full pass: governor, indicators, signal, lifecycle, persist.
// The returned error is non-nil only for fatal conditions; everything else is
// handled and logged in place.
func (e *Engine) Cycle(ctx context.Context) error {
	acct, aerr := e.broker.Account(ctx)
	if aerr != nil {
		e.log.Error().Err(aerr).Msg("account snapshot unavailable, skipping cycle")
		e.persist(ctx, broker.Account{}, false)
		return nil
	}

	verdict, err := e.governor.Check(ctx, acct)
	if err != nil {
		// Drawdown breach: Run performs the liquidation on its way out.
		return err
	}
	if verdict.Flatten {
		e.clear(ctx, journal.EventLiquidate, "margin flatten")
	}

	if err := e.refresh(ctx); err != nil {
		e.log.Error().Err(err).Msg("indicator refresh failed, skipping cycle")
		e.persist(ctx, acct, true)
		return nil
	}

	e.showParamsOnce()

	e.detector.Update(signal.Reading{
		PositioningFast: e.snap.positioningFast,
		PositioningSlow: e.snap.positioningSlow,
		DirectionFast:   e.snap.directionFast,
		DirectionSlow:   e.snap.directionSlow,
		TimingFast:      e.snap.timingFast,
		TimingSlow:      e.snap.timingSlow,
		CrossBand:       e.snap.crossBand,
	})

	if err := e.maybeOpen(ctx); err != nil {
		return err
	}
	e.protect(ctx)
	e.maintainClear(ctx)

	e.persist(ctx, acct, true)
	return nil
}

// refresh recomputes the indicator snapshot. Zero ATR or zero tick metadata
// leaves the snapshot invalid: the division faults degrade to a logged error
// and a cycle without order placement, never a crash.
func (e *Engine) refresh(ctx context.Context) error {
	e.snap = snapshot{}

	info, err := e.broker.SymbolInfo(ctx, e.symbol)
	if err != nil {
		return err
	}
	tick, err := e.broker.Tick(ctx, e.symbol)
	if err != nil {
		return err
	}
	e.snap.info = info
	e.snap.tick = tick

	ma := func(window int) (float64, error) {
		bars, err := e.broker.Candles(ctx, e.symbol, window+1)
		if err != nil {
			return 0, err
		}
		return indicators.MA(bars, window)
	}

	if e.snap.timingFast, err = ma(e.params.TimingFast); err != nil {
		return err
	}
	if e.snap.timingSlow, err = ma(e.params.TimingSlow); err != nil {
		return err
	}
	if e.snap.positioningFast, err = ma(e.params.PositioningFast); err != nil {
		return err
	}
	if e.snap.positioningSlow, err = ma(e.params.PositioningSlow); err != nil {
		return err
	}
	if e.snap.directionFast, err = ma(e.params.DirectionFast); err != nil {
		return err
	}
	if e.snap.directionSlow, err = ma(e.params.DirectionSlow); err != nil {
		return err
	}

	bars, err := e.broker.Candles(ctx, e.symbol, e.trading.ATRBars)
	if err != nil {
		return err
	}
	if e.snap.atr, err = indicators.ATR(bars, e.trading.ATRBars); err != nil {
		return err
	}

	if e.snap.atr == 0 || info.TickSize == 0 || info.TickValue == 0 {
		e.log.Error().
			Float64("atr", e.snap.atr).
			Float64("tick_size", info.TickSize).
			Float64("tick_value", info.TickValue).
			Msg("derived values unavailable, order placement blocked this cycle")
		return nil
	}

	t := e.trading
	e.snap.stopDist = e.snap.atr * t.StopMult
	e.snap.crossBand = e.snap.atr * t.CrossMult
	e.snap.protectTrigger = e.snap.stopDist * t.TouchMult
	e.snap.protectMove = e.snap.stopDist * t.MoveMult
	e.snap.spreadLimit = e.snap.stopDist * t.SpreadMult
	e.snap.deviationTicks = int(math.Round(e.snap.stopDist / info.TickSize / 10))
	e.snap.volume = e.params.StopAmount / (e.snap.stopDist / info.TickSize * info.TickValue)
	e.snap.valid = true
	return nil
}

// entryAllowed is the common gate in front of order creation: positive
// volume and a spread inside the limit.
func (e *Engine) entryAllowed() bool {
	if e.snap.volume <= 0 {
		e.log.Warn().Msg("computed volume <= 0, entry refused (adjust stop multiplier, timeframe or stop amount)")
		return false
	}
	return e.snap.tick.Spread() <= e.snap.spreadLimit
}

// maybeOpen opens a position when flat, unopened, and a confirmed intent is
// latched. On acceptance the first stop-loss is placed immediately; if that
// placement fails the position is closed before the cycle ends.
func (e *Engine) maybeOpen(ctx context.Context) error {
	if !e.snap.valid {
		return nil
	}
	intent := e.detector.Intent()
	if e.pos.Opened || intent == market.None {
		return nil
	}
	if held, err := e.broker.Positions(ctx, e.symbol); err != nil || len(held) > 0 {
		return nil
	}
	if !e.entryAllowed() {
		return nil
	}

	price := e.snap.tick.Ask
	if intent == market.Sell {
		price = e.snap.tick.Bid
	}

	fill, err := e.gateway.SubmitEntry(ctx, broker.OrderRequest{
		Symbol:         e.symbol,
		Side:           intent,
		Volume:         e.snap.volume,
		Price:          price,
		DeviationTicks: e.snap.deviationTicks,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrFatal) {
			return err
		}
		e.recordEvent(journal.EventReject, 0, intent, e.snap.volume, price, err.Error())
		return nil
	}

	e.pos.Ticket = fill.Ticket
	e.pos.OpenPrice = fill.Price
	e.pos.Side = intent
	e.pos.Opened = true
	e.recordEvent(journal.EventOpen, fill.Ticket, intent, e.snap.volume, fill.Price, "")

	stop := fill.Price - e.snap.stopDist
	if intent == market.Sell {
		stop = fill.Price + e.snap.stopDist
	}
	err = e.gateway.ModifyProtection(ctx, broker.StopModify{
		Symbol: e.symbol,
		Ticket: fill.Ticket,
		Kind:   broker.StopLoss,
		Price:  stop,
	}, true)
	if errors.Is(err, gateway.ErrUnprotected) {
		e.clear(ctx, journal.EventClose, "first stop-loss failed")
	}
	return nil
}

// protect moves the stop to break-even once price has run favorably past the
// trigger distance. Distances come from this cycle's snapshot: they track
// live ATR rather than freezing at entry, matching the system this replaces.
// A failed modification is fail-open: the position stays, the protected flag
// is still latched so the move is not retried every cycle.
func (e *Engine) protect(ctx context.Context) {
	if !e.snap.valid || !e.pos.Opened || e.pos.Protected {
		return
	}
	if held, err := e.broker.Positions(ctx, e.symbol); err != nil || len(held) == 0 {
		return
	}

	var target float64
	switch {
	case e.pos.Side == market.Buy && e.snap.tick.Bid > e.pos.OpenPrice+e.snap.protectTrigger:
		target = e.pos.OpenPrice + e.snap.protectMove
	case e.pos.Side == market.Sell && e.snap.tick.Ask < e.pos.OpenPrice-e.snap.protectTrigger:
		target = e.pos.OpenPrice - e.snap.protectMove
	default:
		return
	}

	_ = e.gateway.ModifyProtection(ctx, broker.StopModify{
		Symbol: e.symbol,
		Ticket: e.pos.Ticket,
		Kind:   broker.StopLoss,
		Price:  target,
	}, false)
	e.pos.Protected = true
	e.recordEvent(journal.EventProtect, e.pos.Ticket, e.pos.Side, 0, target, "")
}

// maintainClear runs the end-of-cycle housekeeping: opposing wait-latches are
// dropped on every cycle the cross points against them, and the position is
// conditionally cleared when the live cross contradicts the current side.
func (e *Engine) maintainClear(ctx context.Context) {
	cross := e.detector.Cross()
	e.detector.ClearOpposing(cross)

	side := e.pos.Side
	if side == market.None || side == "" {
		side = e.detector.Intent()
	}
	if (side == market.Buy && cross == market.Sell) ||
		(side == market.Sell && cross == market.Buy) {
		e.clear(ctx, journal.EventClose, "positioning cross reversed")
	}
}

// persist writes the position record (always, changed or not) and, when the
// account snapshot is available, one equity row.
func (e *Engine) persist(ctx context.Context, acct broker.Account, haveAcct bool) {
	if err := e.store.Save(e.pos); err != nil {
		e.log.Error().Err(err).Msg("position persistence failed")
	}
	if !haveAcct {
		return
	}
	err := e.journal.RecordEquity(journal.EquitySnapshot{
		Time:        time.Now().UTC(),
		Balance:     acct.Balance,
		Equity:      acct.Equity,
		MarginUsed:  acct.MarginUsed,
		MarginFree:  acct.MarginFree,
		MarginLevel: acct.MarginLevel,
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("journal equity write failed")
	}
}

// showParamsOnce logs the effective configuration and first derived values a
// single time per run, plus a sanity warning when the typical spread already
// eats the spread budget.
func (e *Engine) showParamsOnce() {
	if e.shownParams || !e.snap.valid {
		return
	}
	e.log.Info().
		Int("timing_fast", e.params.TimingFast).
		Int("timing_slow", e.params.TimingSlow).
		Int("positioning_fast", e.params.PositioningFast).
		Int("positioning_slow", e.params.PositioningSlow).
		Int("direction_fast", e.params.DirectionFast).
		Int("direction_slow", e.params.DirectionSlow).
		Float64("stop_amount", e.params.StopAmount).
		Float64("atr", e.snap.atr).
		Float64("stop_dist", e.snap.stopDist).
		Float64("cross_band", e.snap.crossBand).
		Float64("protect_trigger", e.snap.protectTrigger).
		Float64("protect_move", e.snap.protectMove).
		Float64("spread_limit", e.snap.spreadLimit).
		Int("deviation_ticks", e.snap.deviationTicks).
		Float64("volume", e.snap.volume).
		Msg("effective parameters")

	if e.snap.info.TickSize > 0 {
		limitTicks := e.snap.spreadLimit / e.snap.info.TickSize
		if float64(e.trading.CommonSpreadT) >= limitTicks {
			e.log.Warn().
				Int("common_spread_ticks", e.trading.CommonSpreadT).
				Float64("spread_limit_ticks", limitTicks).
				Msg("typical spread exceeds spread limit, entries may be rarer than expected")
		}
	}
	e.shownParams = true
}
