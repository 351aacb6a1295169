// Package indicators provides streaming technical indicators fed one
// closed candle at a time.
package indicators

import "github.com/rustyeddy/bts/market"

// Indicator computes a single streaming value from candles.
// It is deterministic, so a strategy replayed after Reset sees the same
// values again.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)".
	Name() string

	// Warmup returns how many updates are needed before Ready() is true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed candle.
	Update(c market.Candle)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current value. Callers should check Ready().
	Value() float64
}
