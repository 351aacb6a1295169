// Package optimizer runs a strategy over every combination of a parameter
// space. Combinations are split into contiguous chunks, one per worker, and
// each worker replays the shared candles on its own sim.Engine.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/bts/market"
	"github.com/rustyeddy/bts/sim"
)

// Generator enumerates the parameter combinations to try.
type Generator[P any] interface {
	Generate() []P
}

// GeneratorFunc adapts a function to a Generator.
type GeneratorFunc[P any] func() []P

func (f GeneratorFunc[P]) Generate() []P { return f() }

// Optimizer holds what every worker engine is built from.
type Optimizer struct {
	Candles        []market.Candle
	InitialBalance float64
	Fees           *sim.Fees

	// Workers defaults to runtime.NumCPU().
	Workers int
	Logger  *zap.Logger

	// Projection scores a finished run. Defaults to the total balance.
	Projection func(*sim.Engine) float64
}

// Result is the score of one combination. Index is its position in the
// generator's output.
type Result[P any] struct {
	Index  int
	Params P
	Value  float64
}

// CombinationError reports the combination that failed.
type CombinationError struct {
	Index  int
	Params any
	Err    error
}

func (e *CombinationError) Error() string {
	return fmt.Sprintf("combination %d %v: %v", e.Index, e.Params, e.Err)
}

func (e *CombinationError) Unwrap() error { return e.Err }

// TotalBalance is the default projection.
func TotalBalance(e *sim.Engine) float64 { return e.Wallet().TotalBalance() }

// Run tries every combination of gen. setup builds fresh strategy state for
// each combination, so strategy never needs locking.
//
// Results come back in generation order. When a combination fails its
// worker stops, the others finish the combination they are on and stop, and
// Run returns every result completed so far together with the joined
// *CombinationError values.
func Run[P, S any](
	ctx context.Context,
	opt Optimizer,
	gen Generator[P],
	setup func(P) (S, error),
	strategy func(*sim.Engine, S, market.Candle) error,
) ([]Result[P], error) {
	return run(ctx, opt, gen, setup, func(e *sim.Engine, s S) error {
		return e.Run(func(e *sim.Engine, c market.Candle) error { return strategy(e, s, c) })
	})
}

// RunWithAggregator is Run for strategies that consume aggregated frames.
func RunWithAggregator[P, S any](
	ctx context.Context,
	opt Optimizer,
	gen Generator[P],
	agg sim.Aggregation,
	setup func(P) (S, error),
	strategy func(*sim.Engine, S, sim.Frame) error,
) ([]Result[P], error) {
	return run(ctx, opt, gen, setup, func(e *sim.Engine, s S) error {
		return e.RunWithAggregator(agg, func(e *sim.Engine, f sim.Frame) error { return strategy(e, s, f) })
	})
}

func run[P, S any](
	ctx context.Context,
	opt Optimizer,
	gen Generator[P],
	setup func(P) (S, error),
	replay func(*sim.Engine, S) error,
) ([]Result[P], error) {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	project := opt.Projection
	if project == nil {
		project = TotalBalance
	}
	cfg := sim.Config{InitialBalance: opt.InitialBalance, Fees: opt.Fees, Logger: log.Named("engine")}

	// Fail fast on a configuration no worker could run.
	if _, err := sim.New(opt.Candles, cfg); err != nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}

	combos := gen.Generate()
	if len(combos) == 0 {
		return nil, nil
	}
	chunks := partition(len(combos), opt.Workers)

	results := make([][]Result[P], len(chunks))
	failures := make([]error, len(chunks))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w, ch := range chunks {
		g.Go(func() error {
			e, err := sim.New(opt.Candles, cfg)
			if err != nil {
				failures[w] = err
				return err
			}
			log.Debug("worker started", zap.Int("worker", w), zap.Int("from", ch.from), zap.Int("to", ch.to))

			out := make([]Result[P], 0, ch.to-ch.from)
			defer func() { results[w] = out }()

			for i := ch.from; i < ch.to; i++ {
				if gctx.Err() != nil {
					log.Debug("worker stopped", zap.Int("worker", w), zap.Int("next", i))
					return nil
				}

				p := combos[i]
				s, err := setup(p)
				if err == nil {
					err = replay(e, s)
				}
				if err != nil {
					ce := &CombinationError{Index: i, Params: p, Err: err}
					failures[w] = ce
					log.Warn("combination failed", zap.Int("worker", w), zap.Int("index", i), zap.Error(err))
					return ce
				}

				out = append(out, Result[P]{Index: i, Params: p, Value: project(e)})
				e.Reset()
			}
			log.Debug("worker finished", zap.Int("worker", w), zap.Int("results", len(out)))
			return nil
		})
	}
	_ = g.Wait() // failures carries every error, not just the first

	var all []Result[P]
	for _, rs := range results {
		all = append(all, rs...)
	}

	err := errors.Join(failures...)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	log.Info("optimization finished",
		zap.Int("combinations", len(combos)),
		zap.Int("results", len(all)),
		zap.Int("workers", len(chunks)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("failed", err != nil))
	return all, err
}

type span struct{ from, to int }

// partition splits n items into contiguous spans of ceil(n/workers).
func partition(n, workers int) []span {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	size := (n + workers - 1) / workers
	if size < 1 {
		size = 1
	}
	spans := make([]span, 0, workers)
	for from := 0; from < n; from += size {
		spans = append(spans, span{from: from, to: min(from+size, n)})
	}
	return spans
}

// SortByValue orders results best first. Ties keep generation order.
func SortByValue[P any](rs []Result[P]) {
	slices.SortStableFunc(rs, func(a, b Result[P]) int {
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		}
		return a.Index - b.Index
	})
}

// SortByIndex restores generation order.
func SortByIndex[P any](rs []Result[P]) {
	slices.SortFunc(rs, func(a, b Result[P]) int { return a.Index - b.Index })
}

// Best returns the n highest scoring results without touching rs.
func Best[P any](rs []Result[P], n int) []Result[P] {
	out := slices.Clone(rs)
	SortByValue(out)
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
