// Package gateway sits between the engine and the broker for everything that
// changes orders: entry submission, stop modifications, and the best-effort
// liquidation sweeps. It owns the consecutive-failure counter and the backoff
// that follows too many rejections in a row.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/executor/broker"
	"github.com/rustyeddy/executor/notify"
	"github.com/rustyeddy/executor/wait"
)

var (
	// ErrFatal wraps failures that must shut the whole strategy down, such
	// as a null broker response to an order submission.
	ErrFatal = errors.New("gateway: fatal order failure")

	// ErrUnprotected is returned when the first stop-loss placement for a
	// freshly opened position fails and the position had to be force-closed.
	ErrUnprotected = errors.New("gateway: first stop-loss failed, position closed")
)

type Gateway struct {
	symbol   string
	broker   broker.Broker
	log      zerolog.Logger
	notifier notify.Notifier
	waiter   wait.Waiter
	limiter  *rate.Limiter

	failMax int
	fails   int
}

func New(symbol string, b broker.Broker, log zerolog.Logger, n notify.Notifier, w wait.Waiter, failMax int) *Gateway {
	return &Gateway{
		symbol:   symbol,
		broker:   b,
		log:      log,
		notifier: n,
		waiter:   w,
		// One submission per second is far above the strategy's natural
		// cadence; the limiter guards against a broken loop hammering the
		// broker.
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		failMax: failMax,
	}
}

// Fails returns the current consecutive-failure count.
func (g *Gateway) Fails() int { return g.fails }

// SubmitEntry issues a market entry order. A null broker response is fatal;
// a rejection feeds the failure counter and, at failMax consecutive failures,
// triggers the long cooldown and resets the counter. Any success resets the
// counter.
func (g *Gateway) SubmitEntry(ctx context.Context, req broker.OrderRequest) (broker.OrderFill, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return broker.OrderFill{}, fmt.Errorf("submit entry: %w", err)
	}

	fill, err := g.broker.SubmitMarketOrder(ctx, req)
	if err == nil {
		g.fails = 0
		g.log.Info().
			Int64("ticket", fill.Ticket).
			Str("side", string(req.Side)).
			Float64("volume", req.Volume).
			Float64("price", fill.Price).
			Msg("entry accepted")
		return fill, nil
	}

	if errors.Is(err, broker.ErrNoResponse) {
		msg := "entry submission returned no response, likely a closed market or malformed request"
		g.strong(ctx, msg)
		return broker.OrderFill{}, fmt.Errorf("%w: %s: %v", ErrFatal, msg, err)
	}

	g.fails++
	g.log.Warn().Err(err).Int("consecutive_fails", g.fails).Msg("entry rejected")
	if g.fails >= g.failMax {
		g.strong(ctx, fmt.Sprintf("entry submission failed %d times in a row, backing off", g.fails))
		g.waiter.Wait(wait.Super)
		g.fails = 0
	}
	return broker.OrderFill{}, fmt.Errorf("submit entry: %w", err)
}

// ModifyProtection changes a stop-loss or take-profit on a held ticket.
//
// firstStop marks the initial stop-loss placement right after an entry fill.
// If that placement fails the ticket is force-closed immediately so the
// position never trades unprotected, and ErrUnprotected is returned. Later
// (break-even) failures are fail-open: logged, position left unmodified.
func (g *Gateway) ModifyProtection(ctx context.Context, mod broker.StopModify, firstStop bool) error {
	err := g.broker.ModifyStops(ctx, mod)
	if err == nil {
		g.log.Info().
			Int64("ticket", mod.Ticket).
			Str("kind", string(mod.Kind)).
			Float64("price", mod.Price).
			Msg("protection modified")
		return nil
	}

	if firstStop {
		g.strong(ctx, fmt.Sprintf("first stop-loss for ticket %d failed, closing position to cap exposure", mod.Ticket))
		if cerr := g.broker.ClosePosition(ctx, g.symbol, mod.Ticket); cerr != nil {
			g.log.Error().Err(cerr).Int64("ticket", mod.Ticket).Msg("force close after stop failure also failed")
		}
		return fmt.Errorf("%w: ticket %d: %v", ErrUnprotected, mod.Ticket, err)
	}

	g.log.Warn().Err(err).Int64("ticket", mod.Ticket).Msg("protection modify failed, keeping position unmodified")
	return nil
}

// LiquidateAll closes every held ticket for the symbol, best effort. Failures
// are logged and never retried here; a human operator is the fallback.
func (g *Gateway) LiquidateAll(ctx context.Context) {
	held, err := g.broker.Positions(ctx, g.symbol)
	if err != nil {
		g.log.Error().Err(err).Msg("liquidate: listing positions failed")
		return
	}
	for _, p := range held {
		if err := g.broker.ClosePosition(ctx, g.symbol, p.Ticket); err != nil {
			g.log.Warn().Err(err).Int64("ticket", p.Ticket).Msg("liquidate: close failed")
		}
	}
}

// CancelAllPending cancels every resting order for the symbol, best effort.
func (g *Gateway) CancelAllPending(ctx context.Context) {
	pend, err := g.broker.PendingOrders(ctx, g.symbol)
	if err != nil {
		g.log.Error().Err(err).Msg("cancel sweep: listing pending orders failed")
		return
	}
	for _, o := range pend {
		if err := g.broker.CancelOrder(ctx, o.Ticket); err != nil {
			g.log.Warn().Err(err).Int64("ticket", o.Ticket).Msg("cancel sweep: cancel failed")
		}
	}
}

func (g *Gateway) strong(ctx context.Context, msg string) {
	g.log.Error().Msg(msg)
	if g.notifier != nil {
		if err := g.notifier.Strong(ctx, msg); err != nil {
			g.log.Warn().Err(err).Msg("strong reminder delivery failed")
		}
	}
}
