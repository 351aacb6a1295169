package sim

import (
	"fmt"
	"sort"

	"github.com/rustyeddy/bts/market"
)

// Aggregation decides how base candles are grouped into coarser ones.
type Aggregation interface {
	// Factors lists the resolutions to build, in base candles per
	// aggregate. Factor 1 is the base candle itself.
	Factors() []int
	// Aggregate folds a window into one candle. The window is not reused
	// after the call returns.
	Aggregate(window []market.Candle) (market.Candle, error)
	// ShouldAggregate reports whether window is complete for factor.
	ShouldAggregate(factor int, window []market.Candle) bool
}

// Factors is the stock Aggregation: fixed-size tumbling windows.
type Factors []int

func (f Factors) Factors() []int { return f }

func (Factors) Aggregate(window []market.Candle) (market.Candle, error) {
	return AggregateCandles(window)
}

func (Factors) ShouldAggregate(factor int, window []market.Candle) bool {
	return len(window) == factor
}

// AggregateCandles folds window into one candle spanning it. High and low
// also bound the folded open and close so the result is always valid.
func AggregateCandles(window []market.Candle) (market.Candle, error) {
	if len(window) == 0 {
		return market.Candle{}, ErrCandleDataEmpty
	}
	first, last := window[0], window[len(window)-1]

	high := max(first.Open(), last.Close())
	low := min(first.Open(), last.Close())
	var volume, bid float64
	for _, c := range window {
		high = max(high, c.High())
		low = min(low, c.Low())
		volume += c.Volume()
		bid += c.Bid()
	}

	return market.NewCandle(market.OHLCV{
		Open:      first.Open(),
		High:      high,
		Low:       low,
		Close:     last.Close(),
		Volume:    volume,
		Bid:       bid,
		OpenTime:  first.OpenTime(),
		CloseTime: last.CloseTime(),
	})
}

// Frame is what a FrameFunc sees on each tick: the base candle and, for
// every factor above 1, the most recently completed aggregate if any.
type Frame struct {
	base       market.Candle
	aggregates []frameEntry
}

type frameEntry struct {
	factor int
	candle market.Candle
	fresh  bool
}

// Base is the candle of the current tick.
func (f Frame) Base() market.Candle { return f.base }

// Candles returns the base candle followed by the available aggregates in
// ascending factor order.
func (f Frame) Candles() []market.Candle {
	out := make([]market.Candle, 0, len(f.aggregates)+1)
	out = append(out, f.base)
	for _, a := range f.aggregates {
		out = append(out, a.candle)
	}
	return out
}

// Aggregate returns the latest completed aggregate for factor.
func (f Frame) Aggregate(factor int) (market.Candle, bool) {
	if factor == 1 {
		return f.base, true
	}
	for _, a := range f.aggregates {
		if a.factor == factor {
			return a.candle, true
		}
	}
	return market.Candle{}, false
}

// Fresh reports whether the aggregate for factor completed on this tick.
func (f Frame) Fresh(factor int) bool {
	if factor == 1 {
		return true
	}
	for _, a := range f.aggregates {
		if a.factor == factor {
			return a.fresh
		}
	}
	return false
}

// aggregator keeps one window per factor in step with the run loop.
type aggregator struct {
	agg     Aggregation
	factors []int
	windows map[int][]market.Candle
	last    map[int]market.Candle
}

func newAggregator(agg Aggregation) (*aggregator, error) {
	if agg == nil {
		return nil, fmt.Errorf("%w: nil aggregation", ErrInvalidFactor)
	}
	raw := agg.Factors()
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no factors", ErrInvalidFactor)
	}

	seen := make(map[int]bool, len(raw))
	var factors []int
	for _, f := range raw {
		if f < 1 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidFactor, f)
		}
		if f == 1 || seen[f] {
			continue
		}
		seen[f] = true
		factors = append(factors, f)
	}
	sort.Ints(factors)

	return &aggregator{
		agg:     agg,
		factors: factors,
		windows: make(map[int][]market.Candle, len(factors)),
		last:    make(map[int]market.Candle, len(factors)),
	}, nil
}

// advance pushes c into every window and returns the frame for this tick.
func (a *aggregator) advance(c market.Candle) (Frame, error) {
	frame := Frame{base: c}
	for _, f := range a.factors {
		w := append(a.windows[f], c)
		fresh := false
		if a.agg.ShouldAggregate(f, w) {
			folded, err := a.agg.Aggregate(w)
			if err != nil {
				return Frame{}, fmt.Errorf("aggregate factor %d: %w", f, err)
			}
			a.last[f] = folded
			// a fresh slice, so an Aggregation may keep the one it was given
			w = nil
			fresh = true
		}
		a.windows[f] = w

		if folded, ok := a.last[f]; ok {
			frame.aggregates = append(frame.aggregates, frameEntry{factor: f, candle: folded, fresh: fresh})
		}
	}
	return frame, nil
}
