// Package signal tracks moving-average crossings and turns them into a
// latched directional intent.
//
// Three MA pairs cooperate: the positioning pair establishes a bias when its
// fast line leaves a hysteresis band around the slow line, the direction pair
// confirms the broader trend before a reversal is latched, and the timing
// pair gives the final short-horizon go-ahead that converts the latch into an
// intended side.
package signal

import "github.com/rustyeddy/executor/market"

// Reading carries one cycle's indicator values into the detector.
type Reading struct {
	PositioningFast float64
	PositioningSlow float64
	DirectionFast   float64
	DirectionSlow   float64
	TimingFast      float64
	TimingSlow      float64
	CrossBand       float64 // hysteresis half-width around the slow line
}

// Detector holds cross state across cycles. It is owned by a single engine
// goroutine; no locking.
type Detector struct {
	crossOld market.Side
	crossNew market.Side
	waitBuy  bool
	waitSell bool
	intent   market.Side
}

func NewDetector() *Detector {
	return &Detector{crossOld: market.None, crossNew: market.None, intent: market.None}
}

// Update runs one detection cycle. Checks are evaluated in a fixed order, so
// a crossing can be confirmed and converted into intent within the same
// cycle it is first observed.
func (d *Detector) Update(r Reading) market.Side {
	if r.PositioningFast > r.PositioningSlow+r.CrossBand {
		d.crossOld = d.crossNew
		d.crossNew = market.Buy
	} else if r.PositioningFast < r.PositioningSlow-r.CrossBand {
		d.crossOld = d.crossNew
		d.crossNew = market.Sell
	}
	// inside the band: no cross-state change

	if d.crossOld == market.Sell && d.crossNew == market.Buy && r.DirectionFast > r.DirectionSlow {
		d.waitBuy = true
	} else if d.crossOld == market.Buy && d.crossNew == market.Sell && r.DirectionFast < r.DirectionSlow {
		d.waitSell = true
	}

	if d.waitBuy && r.TimingFast > r.TimingSlow {
		d.intent = market.Buy
	} else if d.waitSell && r.TimingFast < r.TimingSlow {
		d.intent = market.Sell
	}

	return d.intent
}

// Cross returns the current positioning-cross direction.
func (d *Detector) Cross() market.Side { return d.crossNew }

// Intent returns the latched intended side, None until a latch has been
// confirmed by the timing pair.
func (d *Detector) Intent() market.Side { return d.intent }

// ClearOpposing drops the wait latch that the given cross direction
// invalidates: a short cross clears waitBuy, a long cross clears waitSell.
func (d *Detector) ClearOpposing(cross market.Side) {
	switch cross {
	case market.Sell:
		d.waitBuy = false
	case market.Buy:
		d.waitSell = false
	}
}

// ClearPending drops both wait latches and the latched intent. Called when
// the position is cleared; cross history is kept so the hysteresis state
// survives.
func (d *Detector) ClearPending() {
	d.waitBuy = false
	d.waitSell = false
	d.intent = market.None
}

// Reset zeroes everything including cross history.
func (d *Detector) Reset() {
	d.crossOld = market.None
	d.crossNew = market.None
	d.ClearPending()
}
