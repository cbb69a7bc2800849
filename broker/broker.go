package broker

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/executor/market"
)

// Broker is the external market/broker collaborator the executor trades
// through. The core never talks to a vendor API directly; it consumes this
// interface and lets an adapter (broker/mtbridge in production, broker/sim in
// tests) do the translation.
type Broker interface {
	// Connect establishes the session. Adapters retry on a fixed interval
	// until the connection succeeds or ctx is cancelled.
	Connect(ctx context.Context) error

	Tick(ctx context.Context, symbol string) (market.Tick, error)

	// Candles returns up to count most recent bars, chronologically ordered,
	// the last one possibly still forming.
	Candles(ctx context.Context, symbol string, count int) ([]market.Candle, error)

	SymbolInfo(ctx context.Context, symbol string) (market.SymbolInfo, error)

	Account(ctx context.Context) (Account, error)

	Positions(ctx context.Context, symbol string) ([]Position, error)
	PendingOrders(ctx context.Context, symbol string) ([]PendingOrder, error)

	// SubmitMarketOrder issues a market order with an immediate-or-nothing
	// fill policy. Returns ErrRejected when the broker answers no and
	// ErrNoResponse when it answers nothing at all.
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderFill, error)

	// ModifyStops changes the stop-loss or take-profit on a held ticket.
	ModifyStops(ctx context.Context, mod StopModify) error

	ClosePosition(ctx context.Context, symbol string, ticket int64) error
	CancelOrder(ctx context.Context, ticket int64) error
}

var (
	// ErrRejected means the broker processed the request and refused it.
	ErrRejected = errors.New("broker: request rejected")

	// ErrNoResponse means the broker returned a null/absent response, which
	// usually indicates a closed market or a malformed request. Callers treat
	// this as fatal for order submission.
	ErrNoResponse = errors.New("broker: no response")
)

// Account is a point-in-time snapshot of the shared trading account.
type Account struct {
	Login       int64
	Balance     float64
	Profit      float64 // floating P/L
	Equity      float64
	MarginUsed  float64
	MarginFree  float64
	MarginLevel float64 // percentage, e.g. 350 means 350%
}

// Position is a held ticket as reported by the broker.
type Position struct {
	Ticket     int64
	OpenTime   time.Time
	Side       market.Side
	Volume     float64
	OpenPrice  float64
	StopLoss   float64
	TakeProfit float64
	Profit     float64
}

// PendingOrder is a resting order not yet filled.
type PendingOrder struct {
	Ticket    int64
	SetupTime time.Time
	Side      market.Side
	Volume    float64
	Price     float64
}

// OrderRequest describes a market order submission.
type OrderRequest struct {
	Symbol         string
	Side           market.Side
	Volume         float64
	Price          float64
	StopLoss       float64
	TakeProfit     float64
	DeviationTicks int // maximum accepted fill deviation, in ticks
}

// OrderFill is the broker's acceptance of a market order.
type OrderFill struct {
	Ticket int64
	Price  float64
}

// StopKind selects which protective level a StopModify changes.
type StopKind string

const (
	StopLoss   StopKind = "sl"
	TakeProfit StopKind = "tp"
)

// StopModify changes one protective level on an existing ticket.
type StopModify struct {
	Symbol string
	Ticket int64
	Kind   StopKind
	Price  float64
}
