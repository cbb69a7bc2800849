package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/executor/market"
)

// TrueRange computes the bar's true range against the previous close:
// max(high-low, |prevClose-high|, |prevClose|-low).
func TrueRange(cur, prev market.Candle) float64 {
	a := cur.High - cur.Low
	b := math.Abs(prev.Close - cur.High)
	c := math.Abs(prev.Close) - cur.Low
	return math.Max(a, math.Max(b, c))
}

// ATR returns the rolling mean of true range over the last window bars of the
// sample.
//
// The first bar in the sample has no previous close. The system this replaces
// wrapped around to the last bar of the sample there, which skews the very
// first true range; instead the first bar's true range is defined as simply
// high-low.
func ATR(candles []market.Candle, window int) (float64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive, got %d", window)
	}
	if len(candles) < window {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", window, len(candles))
	}

	trs := make([]float64, len(candles))
	trs[0] = candles[0].High - candles[0].Low
	for i := 1; i < len(candles); i++ {
		trs[i] = TrueRange(candles[i], candles[i-1])
	}

	sum := 0.0
	for i := len(trs) - window; i < len(trs); i++ {
		sum += trs[i]
	}
	return sum / float64(window), nil
}
