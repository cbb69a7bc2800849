package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/executor/broker"
	"github.com/rustyeddy/executor/broker/sim"
	"github.com/rustyeddy/executor/config"
	"github.com/rustyeddy/executor/gateway"
	"github.com/rustyeddy/executor/journal"
	"github.com/rustyeddy/executor/market"
	"github.com/rustyeddy/executor/notify"
	"github.com/rustyeddy/executor/position"
	"github.com/rustyeddy/executor/risk"
	"github.com/rustyeddy/executor/store"
	"github.com/rustyeddy/executor/wait"
)

// The harness trades a synthetic symbol with 0.01 tick size. All scenarios
// derive from one market script: a downtrend that settles the positioning
// cross short, then a reversal that latches and confirms a buy.

func testParams() config.ParameterSet {
	return config.ParameterSet{
		TimingFast: 3, TimingSlow: 8,
		PositioningFast: 3, PositioningSlow: 8,
		DirectionFast: 3, DirectionSlow: 8,
		StopAmount: 50,
	}
}

type harness struct {
	eng *Engine
	brk *sim.Engine
	st  *store.Store

	closes []float64
}

func newHarness(t *testing.T, params config.ParameterSet) *harness {
	t.Helper()

	brk := sim.NewEngine(
		broker.Account{Balance: 10000, Equity: 10000, MarginUsed: 100},
		market.SymbolInfo{Name: "EURUSD", Digits: 2, TickSize: 0.01, TickValue: 1},
	)
	log := zerolog.Nop()
	notifier := notify.LogNotifier{Log: log}
	waiter := wait.Clock{}
	st := store.New(t.TempDir(), "EURUSD")

	trading := config.Default().Trading
	trading.ATRBars = 14

	eng := New(Deps{
		Symbol:  "EURUSD",
		Params:  params,
		Trading: trading,

		Log:      log,
		Broker:   brk,
		Gateway:  gateway.New("EURUSD", brk, log, notifier, waiter, trading.FailMax),
		Governor: risk.NewGovernor(risk.Policy{BalanceBegin: 10000, ShrinkLimit: 0.3, MarginLimit: 2}, log, notifier),
		Store:    st,
		Journal:  journal.Nop{},
		Notifier: notifier,
		Waiter:   waiter,
	})
	return &harness{eng: eng, brk: brk, st: st}
}

// feed extends the close series by n steps and posts candles plus a matching
// quote.
func (h *harness) feed(n int, step float64) {
	last := 101.0
	if len(h.closes) > 0 {
		last = h.closes[len(h.closes)-1]
	}
	for i := 0; i < n; i++ {
		last += step
		h.closes = append(h.closes, last)
	}

	t0 := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	cs := make([]market.Candle, len(h.closes))
	prev := h.closes[0]
	for i, c := range h.closes {
		hi, lo := prev, c
		if c > hi {
			hi, lo = c, prev
		}
		cs[i] = market.Candle{
			Time:  t0.Add(time.Duration(i) * time.Minute),
			Open:  prev,
			High:  hi + 0.05,
			Low:   lo - 0.05,
			Close: c,
		}
		prev = c
	}
	h.brk.SetCandles(cs)
	h.quote(last)
}

func (h *harness) quote(mid float64) {
	h.brk.SetTick(market.Tick{Bid: mid - 0.01, Ask: mid + 0.01, Time: time.Now().UTC()})
}

func (h *harness) last() float64 { return h.closes[len(h.closes)-1] }

// openBuy drives the script until the engine holds an open buy.
func (h *harness) openBuy(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	h.feed(40, -0.10)
	require.NoError(t, h.eng.Cycle(ctx))
	require.Equal(t, market.Sell, h.eng.Detector().Cross())

	h.feed(30, 0.15)
	require.NoError(t, h.eng.Cycle(ctx))
	require.True(t, h.eng.Position().Opened, "reversal should open a position")
	require.Equal(t, market.Buy, h.eng.Position().Side)
}

func TestCycleOpensOnConfirmedReversal(t *testing.T) {
	h := newHarness(t, testParams())
	h.openBuy(t)

	held, err := h.brk.Positions(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, market.Buy, held[0].Side)
	assert.Greater(t, held[0].StopLoss, 0.0, "initial stop must be placed with the entry")
	assert.Equal(t, position.Open, h.eng.Position().State())
}

func TestCycleProtectsAfterFavorableRun(t *testing.T) {
	h := newHarness(t, testParams())
	h.openBuy(t)

	h.quote(h.last() + 2.0)
	require.NoError(t, h.eng.Cycle(context.Background()))

	assert.Equal(t, position.Protected, h.eng.Position().State())

	held, err := h.brk.Positions(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Greater(t, held[0].StopLoss, h.eng.Position().OpenPrice,
		"stop should sit past break-even for a long")
}

func TestCycleClearsOnContradictingCross(t *testing.T) {
	h := newHarness(t, testParams())
	h.openBuy(t)

	// The positioning cross flips short while the long is held.
	h.feed(30, -0.15)
	require.NoError(t, h.eng.Cycle(context.Background()))

	assert.Equal(t, position.Flat, h.eng.Position().State())
	held, err := h.brk.Positions(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, held, "contradicted position must be liquidated")
	assert.Equal(t, market.None, h.eng.Detector().Intent(), "pending latches cleared with the position")
}

func TestCycleNeverSubmitsNonPositiveVolume(t *testing.T) {
	params := testParams()
	params.StopAmount = -50 // forces a negative computed volume
	h := newHarness(t, params)
	ctx := context.Background()

	h.feed(40, -0.10)
	require.NoError(t, h.eng.Cycle(ctx))
	h.feed(30, 0.15)
	require.NoError(t, h.eng.Cycle(ctx))

	held, err := h.brk.Positions(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, held)
	assert.False(t, h.eng.Position().Opened)
}

func TestCycleSkipsEntryOnWideSpread(t *testing.T) {
	h := newHarness(t, testParams())
	ctx := context.Background()

	h.feed(40, -0.10)
	require.NoError(t, h.eng.Cycle(ctx))

	h.feed(30, 0.15)
	mid := h.last()
	// Spread limit is stopDist*0.2 = ATR*0.4, roughly 0.1 here; quote 0.5 wide.
	h.brk.SetTick(market.Tick{Bid: mid - 0.25, Ask: mid + 0.25, Time: time.Now().UTC()})
	require.NoError(t, h.eng.Cycle(ctx))

	held, err := h.brk.Positions(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestCycleFirstStopFailureEndsFlat(t *testing.T) {
	h := newHarness(t, testParams())
	ctx := context.Background()

	h.feed(40, -0.10)
	require.NoError(t, h.eng.Cycle(ctx))

	h.feed(30, 0.15)
	h.brk.FailNextModify(broker.ErrRejected)
	require.NoError(t, h.eng.Cycle(ctx), "first-stop failure is handled, not fatal")

	assert.Equal(t, position.Flat, h.eng.Position().State(),
		"position must be flat before the cycle ends")
	held, err := h.brk.Positions(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestCycleNoResponseIsFatal(t *testing.T) {
	h := newHarness(t, testParams())
	ctx := context.Background()

	h.feed(40, -0.10)
	require.NoError(t, h.eng.Cycle(ctx))

	h.feed(30, 0.15)
	h.brk.FailNextSubmit(broker.ErrNoResponse)
	err := h.eng.Cycle(ctx)
	require.ErrorIs(t, err, gateway.ErrFatal)
}

func TestCycleDrawdownBreachIsFatal(t *testing.T) {
	h := newHarness(t, testParams())
	h.feed(40, -0.10)

	h.brk.SetAccount(broker.Account{Balance: 6500, MarginUsed: 100})
	err := h.eng.Cycle(context.Background())
	require.ErrorIs(t, err, risk.ErrDrawdownBreached)
}

func TestCycleMarginBreachFlattens(t *testing.T) {
	h := newHarness(t, testParams())
	h.openBuy(t)

	// Equity over used margin drops the level below 200%.
	h.brk.SetAccount(broker.Account{Balance: 10000, MarginUsed: 9000})
	require.NoError(t, h.eng.Cycle(context.Background()))

	assert.Equal(t, position.Flat, h.eng.Position().State())
	held, err := h.brk.Positions(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestCyclePersistsEveryCycle(t *testing.T) {
	h := newHarness(t, testParams())
	ctx := context.Background()

	h.feed(40, -0.10)
	require.NoError(t, h.eng.Cycle(ctx))
	assert.FileExists(t, h.st.Path())

	h.feed(30, 0.15)
	require.NoError(t, h.eng.Cycle(ctx))

	rec, err := h.st.Load()
	require.NoError(t, err)
	assert.Equal(t, h.eng.Position(), rec, "record mirrors the in-memory position")
}

func TestResyncRestoresHeldTicket(t *testing.T) {
	h := newHarness(t, testParams())
	ctx := context.Background()
	h.feed(5, 0.1)

	fill, err := h.brk.SubmitMarketOrder(ctx, broker.OrderRequest{
		Symbol: "EURUSD", Side: market.Buy, Volume: 0.5, Price: h.last(),
	})
	require.NoError(t, err)
	require.NoError(t, h.st.Save(position.Position{
		Ticket: fill.Ticket, OpenPrice: fill.Price, Side: market.Buy, Opened: true,
	}))

	h.eng.Resync(ctx)

	assert.Equal(t, fill.Ticket, h.eng.Position().Ticket)
	assert.Equal(t, position.Open, h.eng.Position().State())
}

func TestResyncStaleTicketStartsFlat(t *testing.T) {
	h := newHarness(t, testParams())
	ctx := context.Background()
	h.feed(5, 0.1)

	require.NoError(t, h.st.Save(position.Position{
		Ticket: 4242, OpenPrice: 100, Side: market.Buy, Opened: true,
	}))

	h.eng.Resync(ctx)

	assert.Equal(t, position.Flat, h.eng.Position().State())
	assert.False(t, h.eng.Position().Held())
}

func TestResyncWithoutRecordStartsFlat(t *testing.T) {
	h := newHarness(t, testParams())
	h.feed(5, 0.1)

	h.eng.Resync(context.Background())

	assert.Equal(t, position.Flat, h.eng.Position().State())
}
