// Package position defines the unit of persistence for the executor: the one
// position a symbol process may hold, and its lifecycle states.
package position

import "github.com/rustyeddy/executor/market"

// State is the derived lifecycle stage of a Position.
type State string

const (
	// Flat: no side, no ticket.
	Flat State = "flat"
	// Signaled: a side has been chosen but no ticket accepted yet.
	Signaled State = "signaled"
	// Open: ticket accepted, stop still at its initial distance.
	Open State = "open"
	// Protected: stop has been moved to break-even.
	Protected State = "protected"
)

// Position is exclusively owned by the engine; the store only serializes and
// deserializes it.
type Position struct {
	Ticket    int64
	OpenPrice float64
	Side      market.Side
	Opened    bool // order accepted by the broker
	Protected bool // stop moved to break-even
}

// State derives the lifecycle stage from the stored fields.
func (p Position) State() State {
	switch {
	case p.Side == market.None || p.Side == "":
		return Flat
	case !p.Opened:
		return Signaled
	case !p.Protected:
		return Open
	default:
		return Protected
	}
}

// Held reports whether a broker ticket is attached.
func (p Position) Held() bool { return p.Ticket != 0 }

// Reset returns the position to empty (side none, no ticket).
func (p *Position) Reset() {
	*p = Position{Side: market.None}
}
