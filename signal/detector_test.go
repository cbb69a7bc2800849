package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/executor/market"
)

// readings below use a band of 1 around a slow line of 100.
func above(v float64) Reading {
	return Reading{
		PositioningFast: v, PositioningSlow: 100,
		DirectionFast: v, DirectionSlow: 100,
		TimingFast: v, TimingSlow: 100,
		CrossBand: 1,
	}
}

func TestDetectorStartsSilent(t *testing.T) {
	d := NewDetector()
	assert.Equal(t, market.None, d.Cross())
	assert.Equal(t, market.None, d.Intent())
}

func TestDetectorBuyAfterSellCross(t *testing.T) {
	d := NewDetector()

	d.Update(above(95)) // below band: sell cross
	assert.Equal(t, market.Sell, d.Cross())
	assert.Equal(t, market.None, d.Intent())

	d.Update(above(105)) // crosses up with direction and timing agreeing
	assert.Equal(t, market.Buy, d.Cross())
	assert.Equal(t, market.Buy, d.Intent())
}

func TestDetectorSellAfterBuyCross(t *testing.T) {
	d := NewDetector()

	d.Update(above(105))
	d.Update(above(95))
	assert.Equal(t, market.Sell, d.Cross())
	assert.Equal(t, market.Sell, d.Intent())
}

func TestDetectorFirstCrossAloneLatchesNothing(t *testing.T) {
	// Without a prior opposite cross there is no reversal to trade.
	d := NewDetector()
	d.Update(above(105))
	d.Update(above(106))
	assert.Equal(t, market.Buy, d.Cross())
	assert.Equal(t, market.None, d.Intent())
}

func TestDetectorInsideBandKeepsState(t *testing.T) {
	d := NewDetector()
	d.Update(above(95))
	d.Update(above(100.5)) // inside the band
	assert.Equal(t, market.Sell, d.Cross())
}

func TestDetectorLatchWaitsForTiming(t *testing.T) {
	d := NewDetector()
	d.Update(above(95))

	// Cross up, direction agrees, but timing still points down: latched,
	// not yet an intent.
	r := above(105)
	r.TimingFast = 95
	d.Update(r)
	assert.Equal(t, market.None, d.Intent())

	// Timing comes around on a later cycle with the cross unchanged.
	d.Update(above(102))
	assert.Equal(t, market.Buy, d.Intent())
}

func TestClearOpposing(t *testing.T) {
	d := NewDetector()
	d.Update(above(95))
	r := above(105)
	r.TimingFast = 95
	d.Update(r) // waitBuy latched, unconfirmed

	d.ClearOpposing(market.Sell)

	d.Update(above(102))
	assert.Equal(t, market.None, d.Intent())
}

func TestClearPendingKeepsCrossHistory(t *testing.T) {
	d := NewDetector()
	d.Update(above(95))
	d.Update(above(105))
	assert.Equal(t, market.Buy, d.Intent())

	d.ClearPending()
	assert.Equal(t, market.None, d.Intent())
	assert.Equal(t, market.Buy, d.Cross())
}

func TestReset(t *testing.T) {
	d := NewDetector()
	d.Update(above(95))
	d.Update(above(105))

	d.Reset()
	assert.Equal(t, market.None, d.Cross())
	assert.Equal(t, market.None, d.Intent())
}
