// Package sim is an in-memory broker used by tests and the demo command. It
// fills market orders instantly at the posted quote, keeps naive margin
// bookkeeping, and lets callers script rejections and missing responses.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustyeddy/executor/broker"
	"github.com/rustyeddy/executor/market"
)

type Engine struct {
	mu sync.Mutex

	acct    broker.Account
	tick    market.Tick
	candles []market.Candle
	info    market.SymbolInfo

	positions map[int64]*broker.Position
	pending   map[int64]*broker.PendingOrder
	nextID    int64

	// scripted failures, consumed one call at a time
	submitErrs []error
	modifyErrs []error
	closeErrs  []error
}

func NewEngine(acct broker.Account, info market.SymbolInfo) *Engine {
	return &Engine{
		acct:      acct,
		info:      info,
		positions: make(map[int64]*broker.Position),
		pending:   make(map[int64]*broker.PendingOrder),
		nextID:    1000,
	}
}

func (e *Engine) Connect(ctx context.Context) error { return nil }

// SetTick posts a new quote.
func (e *Engine) SetTick(t market.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick = t
}

// SetCandles replaces the bar history returned by Candles.
func (e *Engine) SetCandles(cs []market.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candles = cs
}

func (e *Engine) SetAccount(a broker.Account) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acct = a
}

// FailNextSubmit queues err for the next SubmitMarketOrder call.
func (e *Engine) FailNextSubmit(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitErrs = append(e.submitErrs, err)
}

// FailNextModify queues err for the next ModifyStops call.
func (e *Engine) FailNextModify(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modifyErrs = append(e.modifyErrs, err)
}

// FailNextClose queues err for the next ClosePosition call.
func (e *Engine) FailNextClose(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeErrs = append(e.closeErrs, err)
}

// AddPending registers a resting order, for cancel-sweep tests.
func (e *Engine) AddPending(o broker.PendingOrder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[o.Ticket] = &o
}

func (e *Engine) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick, nil
}

func (e *Engine) Candles(ctx context.Context, symbol string, count int) ([]market.Candle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.candles) == 0 {
		return nil, fmt.Errorf("sim: no candles posted for %s", symbol)
	}
	if count >= len(e.candles) {
		return append([]market.Candle(nil), e.candles...), nil
	}
	return append([]market.Candle(nil), e.candles[len(e.candles)-count:]...), nil
}

func (e *Engine) SymbolInfo(ctx context.Context, symbol string) (market.SymbolInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info, nil
}

func (e *Engine) Account(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acct := e.acct
	acct.Profit = 0
	for _, p := range e.positions {
		acct.Profit += e.floatingLocked(p)
	}
	acct.Equity = acct.Balance + acct.Profit
	if acct.MarginUsed > 0 {
		acct.MarginLevel = acct.Equity / acct.MarginUsed * 100
	}
	acct.MarginFree = acct.Equity - acct.MarginUsed
	return acct, nil
}

func (e *Engine) Positions(ctx context.Context, symbol string) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]broker.Position, 0, len(e.positions))
	for _, p := range e.positions {
		cp := *p
		cp.Profit = e.floatingLocked(p)
		out = append(out, cp)
	}
	return out, nil
}

func (e *Engine) PendingOrders(ctx context.Context, symbol string) ([]broker.PendingOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]broker.PendingOrder, 0, len(e.pending))
	for _, o := range e.pending {
		out = append(out, *o)
	}
	return out, nil
}

func (e *Engine) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderFill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.submitErrs) > 0 {
		err := e.submitErrs[0]
		e.submitErrs = e.submitErrs[1:]
		return broker.OrderFill{}, err
	}
	if req.Side != market.Buy && req.Side != market.Sell {
		return broker.OrderFill{}, fmt.Errorf("%w: bad side %q", broker.ErrRejected, req.Side)
	}

	fillPrice := e.tick.Ask
	if req.Side == market.Sell {
		fillPrice = e.tick.Bid
	}

	e.nextID++
	p := &broker.Position{
		Ticket:     e.nextID,
		OpenTime:   e.tick.Time,
		Side:       req.Side,
		Volume:     req.Volume,
		OpenPrice:  fillPrice,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	}
	e.positions[p.Ticket] = p

	return broker.OrderFill{Ticket: p.Ticket, Price: fillPrice}, nil
}

func (e *Engine) ModifyStops(ctx context.Context, mod broker.StopModify) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.modifyErrs) > 0 {
		err := e.modifyErrs[0]
		e.modifyErrs = e.modifyErrs[1:]
		return err
	}
	p, ok := e.positions[mod.Ticket]
	if !ok {
		return fmt.Errorf("%w: ticket %d not held", broker.ErrRejected, mod.Ticket)
	}
	switch mod.Kind {
	case broker.StopLoss:
		p.StopLoss = mod.Price
	case broker.TakeProfit:
		p.TakeProfit = mod.Price
	default:
		return fmt.Errorf("%w: bad stop kind %q", broker.ErrRejected, mod.Kind)
	}
	return nil
}

func (e *Engine) ClosePosition(ctx context.Context, symbol string, ticket int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.closeErrs) > 0 {
		err := e.closeErrs[0]
		e.closeErrs = e.closeErrs[1:]
		return err
	}
	p, ok := e.positions[ticket]
	if !ok {
		return fmt.Errorf("%w: ticket %d not held", broker.ErrRejected, ticket)
	}
	e.acct.Balance += e.floatingLocked(p)
	delete(e.positions, ticket)
	return nil
}

func (e *Engine) CancelOrder(ctx context.Context, ticket int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[ticket]; !ok {
		return fmt.Errorf("%w: order %d not pending", broker.ErrRejected, ticket)
	}
	delete(e.pending, ticket)
	return nil
}

// floatingLocked values a position against the current quote. Longs close on
// bid, shorts on ask.
func (e *Engine) floatingLocked(p *broker.Position) float64 {
	if e.info.TickSize == 0 {
		return 0
	}
	var move float64
	if p.Side == market.Buy {
		move = e.tick.Bid - p.OpenPrice
	} else {
		move = p.OpenPrice - e.tick.Ask
	}
	return move / e.info.TickSize * e.info.TickValue * p.Volume
}
