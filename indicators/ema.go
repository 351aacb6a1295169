package indicators

import (
	"fmt"

	"github.com/rustyeddy/bts/market"
)

// EMA is an exponential moving average of closes, seeded with the first
// value it sees.
type EMA struct {
	period int
	alpha  float64

	seen  int
	value float64
}

// NewEMA returns an EMA over period values.
func NewEMA(period int) (*EMA, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ema: period must be > 0, got %d", period)
	}
	return &EMA{period: period, alpha: 2.0 / float64(period+1)}, nil
}

func (e *EMA) Name() string   { return fmt.Sprintf("EMA(%d)", e.period) }
func (e *EMA) Warmup() int    { return e.period }
func (e *EMA) Ready() bool    { return e.seen >= e.period }
func (e *EMA) Value() float64 { return e.value }

func (e *EMA) Reset() {
	e.seen = 0
	e.value = 0
}

func (e *EMA) Update(c market.Candle) { e.Next(c.Close()) }

// Next feeds a raw value and returns the updated average.
func (e *EMA) Next(x float64) float64 {
	e.seen++
	if e.seen == 1 {
		e.value = x
	} else {
		e.value = e.alpha*x + (1-e.alpha)*e.value
	}
	return e.value
}
