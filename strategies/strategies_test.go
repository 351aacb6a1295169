package strategies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/bts/market"
	"github.com/rustyeddy/bts/optimizer"
	"github.com/rustyeddy/bts/sim"
)

func sample() []market.Candle {
	return market.Generate(market.GenerateConfig{Count: 600, Seed: 42})
}

func newEngine(t *testing.T) *sim.Engine {
	t.Helper()
	e, err := sim.New(sample(), sim.Config{InitialBalance: 1000})
	require.NoError(t, err)
	return e
}

func fastParams() Params {
	p := DefaultParams()
	p.EMAPeriod = 20
	return p
}

func TestNoop(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	require.NoError(t, Run(e, Noop{}))
	assert.Empty(t, e.Events())
	assert.Equal(t, 1000.0, e.Wallet().TotalBalance())
}

func TestByName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"ema-macd-trailing", "ema-tpsl", "mtf-trailing", "noop"}, Names())

	for _, name := range Names() {
		s, err := ByName(" "+name+" ", DefaultParams())
		require.NoError(t, err, name)
		switch s := s.(type) {
		case FrameStrategy:
			assert.Equal(t, name, s.Name())
		case Strategy:
			assert.Equal(t, name, s.Name())
		default:
			t.Fatalf("%s built %T", name, s)
		}
	}

	_, err := ByName("martingale", DefaultParams())
	assert.ErrorContains(t, err, "unknown strategy")

	assert.Error(t, Run(nil, 42))
}

func TestParamsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.EMAPeriod = 0
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.RiskPercent = 0
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.TrailingPercent = 0
	_, err := NewEMAMACDTrailing(p)
	assert.Error(t, err)

	p = DefaultParams()
	p.Factor = 1
	_, err = NewMultiTimeframe(p)
	assert.Error(t, err)
}

func TestEMAMACDTrailingTrades(t *testing.T) {
	t.Parallel()

	s, err := NewEMAMACDTrailing(fastParams())
	require.NoError(t, err)
	e := newEngine(t)
	require.NoError(t, Run(e, s))

	closed := e.ClosedPositions()
	require.NotEmpty(t, closed)
	for _, p := range closed {
		assert.Equal(t, sim.ExitTrailingStop, p.ExitReason)
		assert.Equal(t, sim.Long, p.Side)
	}

	free, err := e.Wallet().FreeBalance()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, free, 0.0)
}

func TestEMAMACDTrailingReplaysAfterReset(t *testing.T) {
	t.Parallel()

	s, err := NewEMAMACDTrailing(fastParams())
	require.NoError(t, err)
	e := newEngine(t)

	require.NoError(t, Run(e, s))
	first := e.Wallet().TotalBalance()
	trades := len(e.ClosedPositions())

	e.Reset()
	s.Reset()
	require.NoError(t, Run(e, s))
	assert.Equal(t, first, e.Wallet().TotalBalance())
	assert.Len(t, e.ClosedPositions(), trades)
}

func TestEMATakeProfitExits(t *testing.T) {
	t.Parallel()

	s, err := NewEMATakeProfit(fastParams())
	require.NoError(t, err)
	e := newEngine(t)
	require.NoError(t, Run(e, s))

	closed := e.ClosedPositions()
	require.NotEmpty(t, closed)
	for _, p := range closed {
		require.NotNil(t, p.Exit)
		switch p.ExitReason {
		case sim.ExitTakeProfit:
			assert.InDelta(t, p.Exit.TakeProfit, p.ExitPrice, 1e-9)
			assert.Greater(t, p.PnL(), 0.0)
		case sim.ExitStopLoss:
			assert.InDelta(t, p.Exit.StopLoss, p.ExitPrice, 1e-9)
			assert.Less(t, p.PnL(), 0.0)
		default:
			t.Fatalf("unexpected exit %s", p.ExitReason)
		}
	}
}

func TestMultiTimeframeEntersOnlyWithBullishAggregate(t *testing.T) {
	t.Parallel()

	p := fastParams()
	s, err := NewMultiTimeframe(p)
	require.NoError(t, err)
	e := newEngine(t)
	require.NoError(t, Run(e, s))

	candles := e.Candles()
	tick := make(map[int64]int, len(candles))
	for i, c := range candles {
		tick[c.CloseTime().UnixNano()] = i
	}

	entries := 0
	for _, ev := range e.Events() {
		if ev.Kind != sim.AddOrder {
			continue
		}
		entries++
		i := tick[ev.Time.UnixNano()]
		done := (i + 1) / p.Factor
		require.Positive(t, done, "entry at tick %d before the first aggregate", i)
		agg, err := sim.AggregateCandles(candles[(done-1)*p.Factor : done*p.Factor])
		require.NoError(t, err)
		assert.True(t, agg.Bullish(), "entry at tick %d under a bearish aggregate", i)
	}
	assert.Positive(t, entries)
}

func TestGrid(t *testing.T) {
	t.Parallel()

	g := Grid{
		Base:             DefaultParams(),
		EMAPeriods:       IntRange(8, 10, 1),
		MACD:             [][3]int{{8, 9, 8}, {9, 10, 9}},
		TrailingPercents: []float64{1, 2},
	}
	ps := g.Generate()
	require.Len(t, ps, 12)
	assert.Equal(t, 8, ps[0].EMAPeriod)
	assert.Equal(t, 10, ps[2].EMAPeriod)
	assert.Equal(t, 2.0, ps[3].TrailingPercent)
	assert.Equal(t, 9, ps[11].MACDFast)

	only := Grid{Base: DefaultParams()}.Generate()
	assert.Equal(t, []Params{DefaultParams()}, only)

	assert.Equal(t, []int{1, 3, 5}, IntRange(1, 5, 2))
	assert.Len(t, MACDTriples(8, 10), 3*3)
}

func TestGridWithOptimizer(t *testing.T) {
	t.Parallel()

	g := Grid{Base: fastParams(), EMAPeriods: []int{10, 20}, TrailingPercents: []float64{1, 3}}
	opt := optimizer.Optimizer{Candles: sample(), InitialBalance: 1000, Workers: 2}

	rs, err := optimizer.Run[Params, *EMAMACDTrailing](context.Background(), opt, g, NewEMAMACDTrailing,
		func(e *sim.Engine, s *EMAMACDTrailing, c market.Candle) error { return s.OnCandle(e, c) })
	require.NoError(t, err)
	require.Len(t, rs, 4)

	for _, r := range rs {
		s, err := NewEMAMACDTrailing(r.Params)
		require.NoError(t, err)
		e := newEngine(t)
		require.NoError(t, Run(e, s))
		assert.Equal(t, e.Wallet().TotalBalance(), r.Value, "%s", r.Params)
	}
}
