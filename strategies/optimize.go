package strategies

import (
	"context"

	"github.com/rustyeddy/bts/market"
	"github.com/rustyeddy/bts/optimizer"
	"github.com/rustyeddy/bts/sim"
)

// Optimize scores every combination of g with the named strategy. Each
// combination gets its own strategy instance. Frame strategies run with
// the aggregation of g.Base.
func Optimize(ctx context.Context, opt optimizer.Optimizer, name string, g Grid) ([]optimizer.Result[Params], error) {
	probe, err := ByName(name, g.Base)
	if err != nil {
		return nil, err
	}
	setup := func(p Params) (any, error) { return ByName(name, p) }

	if fs, ok := probe.(FrameStrategy); ok {
		return optimizer.RunWithAggregator[Params, any](ctx, opt, g, fs.Aggregation(), setup,
			func(e *sim.Engine, s any, f sim.Frame) error { return s.(FrameStrategy).OnFrame(e, f) })
	}
	return optimizer.Run[Params, any](ctx, opt, g, setup,
		func(e *sim.Engine, s any, c market.Candle) error { return s.(Strategy).OnCandle(e, c) })
}
