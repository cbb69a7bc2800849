// Package indicators provides the moving-average and volatility math the
// signal detector and position engine consume each cycle. Everything here is a
// pure function of the bar series passed in.
package indicators

import (
	"fmt"

	"github.com/rustyeddy/executor/market"
)

// MA returns the arithmetic mean of the closing prices of the most recent
// window *completed* bars. Callers fetch window+1 bars so the still-forming
// current bar can be trimmed; the last candle in the slice is always dropped.
func MA(candles []market.Candle, window int) (float64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive, got %d", window)
	}
	if len(candles) < window+1 {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", window+1, len(candles))
	}

	completed := candles[:len(candles)-1]
	sum := 0.0
	for i := len(completed) - window; i < len(completed); i++ {
		sum += completed[i].Close
	}
	return sum / float64(window), nil
}
