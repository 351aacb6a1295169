package market

import (
	"fmt"
	"time"
)

// CandleSet is an ordered run of candles plus where they came from.
type CandleSet struct {
	Source    string
	Timeframe time.Duration
	Candles   []Candle
}

// Gap is a hole in the series: Len bars missing before index Idx.
type Gap struct {
	Idx int
	Len int
}

// NewCandleSet checks ordering and infers the timeframe from the most common
// spacing between consecutive open times.
func NewCandleSet(source string, candles []Candle) (*CandleSet, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("candle set %q: no candles", source)
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime().Before(candles[i-1].OpenTime()) {
			return nil, fmt.Errorf("candle set %q: candle %d opens before candle %d", source, i, i-1)
		}
	}

	return &CandleSet{
		Source:    source,
		Timeframe: inferTimeframe(candles),
		Candles:   candles,
	}, nil
}

func (cs *CandleSet) Len() int      { return len(cs.Candles) }
func (cs *CandleSet) First() Candle { return cs.Candles[0] }
func (cs *CandleSet) Last() Candle  { return cs.Candles[len(cs.Candles)-1] }

// Gaps lists the places where consecutive bars are further apart than one
// timeframe. Weekends in FX data show up here.
func (cs *CandleSet) Gaps() []Gap {
	if cs.Timeframe <= 0 {
		return nil
	}

	var gaps []Gap
	for i := 1; i < len(cs.Candles); i++ {
		d := cs.Candles[i].OpenTime().Sub(cs.Candles[i-1].OpenTime())
		if missing := int(d/cs.Timeframe) - 1; missing > 0 {
			gaps = append(gaps, Gap{Idx: i, Len: missing})
		}
	}
	return gaps
}

func inferTimeframe(candles []Candle) time.Duration {
	counts := map[time.Duration]int{}
	var best time.Duration
	for i := 1; i < len(candles); i++ {
		d := candles[i].OpenTime().Sub(candles[i-1].OpenTime())
		if d <= 0 {
			continue
		}
		counts[d]++
		if counts[d] > counts[best] || (counts[d] == counts[best] && d < best) {
			best = d
		}
	}
	if best == 0 && len(candles) > 0 {
		return candles[0].CloseTime().Sub(candles[0].OpenTime())
	}
	return best
}
