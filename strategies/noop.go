package strategies

import (
	"github.com/rustyeddy/bts/market"
	"github.com/rustyeddy/bts/sim"
)

// Noop never trades. Useful as a baseline.
type Noop struct{}

func (Noop) Name() string                              { return "noop" }
func (Noop) OnCandle(*sim.Engine, market.Candle) error { return nil }
func (Noop) Reset()                                    {}
