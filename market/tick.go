package market

import "time"

// Tick is a best bid/ask quote for a single symbol.
type Tick struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}
