// Package risk evaluates account-level limits every cycle, before any signal
// or order logic runs.
package risk

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/executor/broker"
	"github.com/rustyeddy/executor/notify"
)

// ErrDrawdownBreached is returned when account drawdown exceeds the hard
// limit. The strategy must liquidate and terminate.
var ErrDrawdownBreached = errors.New("risk: drawdown limit breached")

// Policy holds the configured account limits.
type Policy struct {
	BalanceBegin float64 // period-start balance the drawdown is measured against
	ShrinkLimit  float64 // max fractional drawdown, e.g. 0.3
	MarginLimit  float64 // min margin ratio (marginLevel/100), e.g. 2.0
}

// Verdict is the per-cycle outcome of the governor checks.
type Verdict struct {
	Liquidate bool // fatal: flatten everything and terminate
	Flatten   bool // recoverable: flatten to free margin, keep running

	Shrink      float64
	MarginRatio float64
}

// Governor owns the one-shot warning latches; they reset only on process
// restart.
type Governor struct {
	policy   Policy
	log      zerolog.Logger
	notifier notify.Notifier

	shrinkWarned bool
	marginWarned bool
}

func NewGovernor(p Policy, log zerolog.Logger, n notify.Notifier) *Governor {
	return &Governor{policy: p, log: log, notifier: n}
}

// Check evaluates drawdown then margin. A hard drawdown breach returns
// ErrDrawdownBreached with Verdict.Liquidate set; a margin breach below the
// soft limit sets Verdict.Flatten and is not an error.
func (g *Governor) Check(ctx context.Context, acct broker.Account) (Verdict, error) {
	v := Verdict{}

	if g.policy.BalanceBegin > 0 {
		v.Shrink = (g.policy.BalanceBegin - acct.Balance) / g.policy.BalanceBegin
	}
	if v.Shrink > 0 {
		switch {
		case v.Shrink > g.policy.ShrinkLimit:
			v.Liquidate = true
			msg := fmt.Sprintf("drawdown %.2f%% exceeds limit %.2f%%, liquidating and terminating",
				v.Shrink*100, g.policy.ShrinkLimit*100)
			g.notify(ctx, msg)
			return v, fmt.Errorf("%w: %s", ErrDrawdownBreached, msg)

		case v.Shrink > g.policy.ShrinkLimit*0.8 && !g.shrinkWarned:
			g.notify(ctx, fmt.Sprintf("drawdown %.2f%% past 80%% of limit %.2f%%",
				v.Shrink*100, g.policy.ShrinkLimit*100))
			g.shrinkWarned = true
		}
	}

	v.MarginRatio = acct.MarginLevel / 100
	if v.MarginRatio > 0 {
		switch {
		case v.MarginRatio < g.policy.MarginLimit:
			v.Flatten = true
			g.notify(ctx, fmt.Sprintf("margin ratio %.2f below limit %.2f, flattening to free margin",
				v.MarginRatio, g.policy.MarginLimit))

		case v.MarginRatio < g.policy.MarginLimit*1.2 && !g.marginWarned:
			g.notify(ctx, fmt.Sprintf("margin ratio %.2f within 120%% of limit %.2f",
				v.MarginRatio, g.policy.MarginLimit))
			g.marginWarned = true
		}
	}

	return v, nil
}

// LogBalanceReset reports, once per process start, how far the current
// balance sits from the configured period-start balance. Informational only.
func (g *Governor) LogBalanceReset(acct broker.Account) {
	if g.policy.BalanceBegin <= 0 {
		return
	}
	diff := acct.Balance - g.policy.BalanceBegin
	pct := acct.Balance / g.policy.BalanceBegin * 100
	g.log.Warn().
		Float64("balance", acct.Balance).
		Float64("balance_begin", g.policy.BalanceBegin).
		Float64("percent", pct).
		Float64("difference", diff).
		Msg("period-start balance check")
}

func (g *Governor) notify(ctx context.Context, msg string) {
	g.log.Error().Msg(msg)
	if g.notifier != nil {
		if err := g.notifier.Strong(ctx, msg); err != nil {
			g.log.Warn().Err(err).Msg("strong reminder delivery failed")
		}
	}
}
