package market

// Side is the direction of a position or intended trade.
type Side string

const (
	None Side = "none"
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the reversing side; None maps to None.
func (s Side) Opposite() Side {
	switch s {
	case Buy:
		return Sell
	case Sell:
		return Buy
	}
	return None
}

// Valid reports whether s is one of the three known sides.
func (s Side) Valid() bool {
	return s == None || s == Buy || s == Sell
}
