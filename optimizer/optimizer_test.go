package optimizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/bts/market"
	"github.com/rustyeddy/bts/sim"
)

type params struct {
	entryEvery int
	takeProfit float64
}

type state struct {
	params
	ticks int
}

func grid() Generator[params] {
	return GeneratorFunc[params](func() []params {
		var out []params
		for every := 2; every <= 12; every++ {
			for _, tp := range []float64{1, 2.5, 5} {
				out = append(out, params{entryEvery: every, takeProfit: tp})
			}
		}
		return out
	})
}

func setup(p params) (*state, error) { return &state{params: p}, nil }

func strategy(e *sim.Engine, s *state, c market.Candle) error {
	s.ticks++
	if s.ticks%s.entryEvery != 0 {
		return nil
	}
	free, err := e.Wallet().FreeBalance()
	if err != nil {
		return err
	}
	qty := free * 0.2 / c.Close()
	if qty <= 0 {
		return nil
	}
	exit := sim.TakeProfitStopLoss(market.AddPercent(c.Close(), s.takeProfit), market.SubPercent(c.Close(), s.takeProfit))
	return e.PlaceOrder(sim.NewOrderWithExit(sim.MarketAt(c.Close()), exit, qty, sim.Buy))
}

func candles() []market.Candle {
	return market.Generate(market.GenerateConfig{Count: 150, Seed: 7})
}

func TestRunParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	opt := Optimizer{
		Candles:        candles(),
		InitialBalance: 10_000,
		Fees:           &sim.Fees{Market: 0.001, Limit: 0.0005},
		Workers:        1,
	}
	seq, err := Run(context.Background(), opt, grid(), setup, strategy)
	require.NoError(t, err)
	require.Len(t, seq, 33)

	for _, workers := range []int{2, 4, 7, 64} {
		opt.Workers = workers
		par, err := Run(context.Background(), opt, grid(), setup, strategy)
		require.NoError(t, err)
		assert.Equal(t, seq, par, "workers=%d", workers)
	}

	for i, r := range seq {
		assert.Equal(t, i, r.Index)
	}
}

func TestRunDefaultsAndProjection(t *testing.T) {
	t.Parallel()

	opt := Optimizer{Candles: candles(), InitialBalance: 1000}
	rs, err := Run(context.Background(), opt, grid(), setup, strategy)
	require.NoError(t, err)
	require.Len(t, rs, 33)

	opt.Projection = func(e *sim.Engine) float64 { return float64(len(e.ClosedPositions())) }
	trades, err := Run(context.Background(), opt, grid(), setup, strategy)
	require.NoError(t, err)
	assert.Positive(t, trades[0].Value)
	assert.Equal(t, rs[0].Params, trades[0].Params)
}

func TestRunReportsFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	failing := func(p params) (*state, error) {
		if p.entryEvery == 5 && p.takeProfit == 2.5 {
			return nil, boom
		}
		return setup(p)
	}

	opt := Optimizer{Candles: candles(), InitialBalance: 1000, Workers: 3}
	rs, err := Run(context.Background(), opt, grid(), failing, strategy)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var ce *CombinationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 10, ce.Index)
	assert.Equal(t, params{entryEvery: 5, takeProfit: 2.5}, ce.Params)

	// the failing worker keeps what it finished before index 10
	require.NotEmpty(t, rs)
	for i, r := range rs[:10] {
		assert.Equal(t, i, r.Index)
	}
	for _, r := range rs {
		assert.NotEqual(t, 10, r.Index)
	}
}

func TestRunStrategyErrorCarriesTick(t *testing.T) {
	t.Parallel()

	boom := errors.New("bad tick")
	opt := Optimizer{Candles: candles(), InitialBalance: 1000, Workers: 2}
	_, err := Run(context.Background(), opt,
		GeneratorFunc[int](func() []int { return []int{0, 1} }),
		func(p int) (int, error) { return p, nil },
		func(e *sim.Engine, p int, c market.Candle) error {
			if p == 1 && e.Index() == 3 {
				return boom
			}
			return nil
		})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "tick 3")
}

func TestRunInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), Optimizer{InitialBalance: 1000}, grid(), setup, strategy)
	assert.ErrorIs(t, err, sim.ErrCandleDataEmpty)

	_, err = Run(context.Background(), Optimizer{Candles: candles()}, grid(), setup, strategy)
	assert.ErrorIs(t, err, sim.ErrNonPositiveBalance)

	rs, err := Run(context.Background(), Optimizer{Candles: candles(), InitialBalance: 1},
		GeneratorFunc[params](func() []params { return nil }), setup, strategy)
	assert.NoError(t, err)
	assert.Empty(t, rs)
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rs, err := Run(ctx, Optimizer{Candles: candles(), InitialBalance: 1000, Workers: 2}, grid(), setup, strategy)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rs)
}

func TestRunWithAggregator(t *testing.T) {
	t.Parallel()

	opt := Optimizer{Candles: candles(), InitialBalance: 1000, Workers: 3}
	frameStrategy := func(e *sim.Engine, s *state, f sim.Frame) error {
		if !f.Fresh(s.entryEvery) {
			return nil
		}
		return strategy(e, s, f.Base())
	}
	gen := GeneratorFunc[params](func() []params {
		return []params{{2, 1}, {3, 1}, {4, 2}, {6, 3}}
	})

	rs, err := RunWithAggregator(context.Background(), opt, gen, sim.Factors{2, 3, 4, 6}, setup, frameStrategy)
	require.NoError(t, err)
	require.Len(t, rs, 4)

	opt.Workers = 1
	seq, err := RunWithAggregator(context.Background(), opt, gen, sim.Factors{2, 3, 4, 6}, setup, frameStrategy)
	require.NoError(t, err)
	assert.Equal(t, seq, rs)
}

func TestSortHelpers(t *testing.T) {
	t.Parallel()

	rs := []Result[string]{
		{Index: 0, Params: "a", Value: 1},
		{Index: 1, Params: "b", Value: 3},
		{Index: 2, Params: "c", Value: 2},
		{Index: 3, Params: "d", Value: 3},
	}

	best := Best(rs, 2)
	assert.Equal(t, []string{"b", "d"}, []string{best[0].Params, best[1].Params})
	assert.Equal(t, "a", rs[0].Params, "Best must not reorder its input")

	SortByValue(rs)
	assert.Equal(t, []int{1, 3, 2, 0}, []int{rs[0].Index, rs[1].Index, rs[2].Index, rs[3].Index})
	SortByIndex(rs)
	assert.Equal(t, []int{0, 1, 2, 3}, []int{rs[0].Index, rs[1].Index, rs[2].Index, rs[3].Index})
	assert.Len(t, Best(rs, -1), 4)
}

func TestPartition(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []span{{0, 4}, {4, 8}, {8, 10}}, partition(10, 3))
	assert.Equal(t, []span{{0, 1}, {1, 2}}, partition(2, 8))
	assert.NotEmpty(t, partition(5, 0))
}
