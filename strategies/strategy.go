package strategies

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/bts/market"
	"github.com/rustyeddy/bts/sim"
)

// Strategy is called once per base candle by sim.Engine.Run. A strategy
// keeps indicator state, so each engine run needs its own instance or a
// Reset in between.
type Strategy interface {
	Name() string
	OnCandle(e *sim.Engine, c market.Candle) error
	Reset()
}

// FrameStrategy is a Strategy that consumes aggregated frames.
type FrameStrategy interface {
	Name() string
	Aggregation() sim.Aggregation
	OnFrame(e *sim.Engine, f sim.Frame) error
	Reset()
}

// Run replays s on e, using the aggregator when s needs frames.
func Run(e *sim.Engine, s any) error {
	switch s := s.(type) {
	case FrameStrategy:
		return e.RunWithAggregator(s.Aggregation(), s.OnFrame)
	case Strategy:
		return e.Run(s.OnCandle)
	}
	return fmt.Errorf("strategies: %T is not a strategy", s)
}

type factory func(Params) (any, error)

var registry = map[string]factory{
	"noop": func(Params) (any, error) { return Noop{}, nil },
	"ema-macd-trailing": func(p Params) (any, error) {
		return NewEMAMACDTrailing(p)
	},
	"ema-tpsl": func(p Params) (any, error) {
		return NewEMATakeProfit(p)
	},
	"mtf-trailing": func(p Params) (any, error) {
		return NewMultiTimeframe(p)
	},
}

// Names lists the registered strategy names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ByName builds a strategy from its registered name. The result is either a
// Strategy or a FrameStrategy; pass it to Run.
func ByName(name string, p Params) (any, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return f(p)
}
