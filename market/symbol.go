package market

// SymbolInfo carries the per-symbol pricing metadata the executor needs for
// sizing and distance math. TickSize and TickValue come from the broker and
// can legitimately be zero during a connectivity glitch; consumers must treat
// that as a degraded cycle, never divide blindly.
type SymbolInfo struct {
	Name      string
	Digits    int
	TickSize  float64 // smallest price increment
	TickValue float64 // account-currency value of one tick for one lot
}
