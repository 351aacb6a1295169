package strategies

import (
	"errors"

	"github.com/rustyeddy/bts/market"
	"github.com/rustyeddy/bts/sim"
)

// EMAMACDTrailing buys at market when the trend filter is long and protects
// every entry with a trailing stop.
type EMAMACDTrailing struct {
	Params
	trend *trend
}

func NewEMAMACDTrailing(p Params) (*EMAMACDTrailing, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.TrailingPercent <= 0 {
		return nil, errors.New("ema-macd-trailing: trailing percent must be > 0")
	}
	t, err := newTrend(p)
	if err != nil {
		return nil, err
	}
	return &EMAMACDTrailing{Params: p, trend: t}, nil
}

func (s *EMAMACDTrailing) Name() string { return "ema-macd-trailing" }
func (s *EMAMACDTrailing) Reset()       { s.trend.reset() }

func (s *EMAMACDTrailing) OnCandle(e *sim.Engine, c market.Candle) error {
	if !s.trend.update(c) {
		return nil
	}
	return s.enter(e, c.Close())
}

func (s *EMAMACDTrailing) enter(e *sim.Engine, price float64) error {
	qty, err := entryQuantity(e, s.Params, price)
	if err != nil || qty <= 0 {
		return err
	}
	return e.PlaceOrder(sim.NewOrderWithExit(
		sim.MarketAt(price),
		sim.TrailingStopAt(price, s.TrailingPercent),
		qty, sim.Buy))
}

// MultiTimeframe is EMAMACDTrailing that only enters while the latest
// higher timeframe candle is bullish.
type MultiTimeframe struct {
	*EMAMACDTrailing
}

func NewMultiTimeframe(p Params) (*MultiTimeframe, error) {
	if p.Factor < 2 {
		return nil, errors.New("mtf-trailing: factor must be >= 2")
	}
	base, err := NewEMAMACDTrailing(p)
	if err != nil {
		return nil, err
	}
	return &MultiTimeframe{EMAMACDTrailing: base}, nil
}

func (s *MultiTimeframe) Name() string { return "mtf-trailing" }

func (s *MultiTimeframe) Aggregation() sim.Aggregation { return sim.Factors{1, s.Factor} }

func (s *MultiTimeframe) OnFrame(e *sim.Engine, f sim.Frame) error {
	base := f.Base()
	long := s.trend.update(base)
	htf, ok := f.Aggregate(s.Factor)
	if !long || !ok || !htf.Bullish() {
		return nil
	}
	return s.enter(e, base.Close())
}
