package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/bts/market"
)

func TestAggregateCandles(t *testing.T) {
	t.Parallel()

	_, err := AggregateCandles(nil)
	assert.ErrorIs(t, err, ErrCandleDataEmpty)

	window := []market.Candle{
		bar(t, 0, 100, 105, 95, 102),
		bar(t, 1, 102, 110, 101, 108),
		bar(t, 2, 108, 109, 90, 93),
	}
	got, err := AggregateCandles(window)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Open())
	assert.Equal(t, 110.0, got.High())
	assert.Equal(t, 90.0, got.Low())
	assert.Equal(t, 93.0, got.Close())
	assert.Equal(t, 3.0, got.Volume())
	assert.Equal(t, window[0].OpenTime(), got.OpenTime())
	assert.Equal(t, window[2].CloseTime(), got.CloseTime())
}

func TestNewAggregatorFactors(t *testing.T) {
	t.Parallel()

	_, err := newAggregator(Factors{})
	assert.ErrorIs(t, err, ErrInvalidFactor)
	_, err = newAggregator(Factors{1, 0})
	assert.ErrorIs(t, err, ErrInvalidFactor)
	_, err = newAggregator(nil)
	assert.ErrorIs(t, err, ErrInvalidFactor)

	a, err := newAggregator(Factors{8, 1, 2, 8, 4})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 8}, a.factors)
}

func TestRunWithAggregatorFactorsOneTwo(t *testing.T) {
	t.Parallel()

	candles := []market.Candle{
		bar(t, 0, 100, 105, 95, 102),
		bar(t, 1, 102, 110, 101, 108),
		bar(t, 2, 108, 109, 90, 93),
	}
	e := newEngine(t, candles, 1000, nil)

	var frames []Frame
	err := e.RunWithAggregator(Factors{1, 2}, func(e *Engine, f Frame) error {
		assert.Equal(t, candles[e.Index()], f.Base())
		frames = append(frames, f)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 3)

	_, ok := frames[0].Aggregate(2)
	assert.False(t, ok, "factor 2 is absent on the first tick")
	assert.Len(t, frames[0].Candles(), 1)

	want, err := AggregateCandles(candles[:2])
	require.NoError(t, err)
	for i, f := range frames[1:] {
		agg, ok := f.Aggregate(2)
		require.True(t, ok, "tick %d", i+1)
		assert.Equal(t, want, agg)
		assert.NotEqual(t, f.Base(), agg)

		cs := f.Candles()
		require.Len(t, cs, 2)
		assert.Equal(t, f.Base(), cs[0])
		assert.Equal(t, agg, cs[1])
	}
	assert.True(t, frames[1].Fresh(2))
	assert.False(t, frames[2].Fresh(2))

	base, ok := frames[2].Aggregate(1)
	assert.True(t, ok)
	assert.Equal(t, candles[2], base)
}

func TestRunWithAggregatorTradesOnBase(t *testing.T) {
	t.Parallel()

	e := newEngine(t, longBars(t), 1000, nil)
	err := e.RunWithAggregator(Factors{3}, func(e *Engine, f Frame) error {
		if e.Index() == 0 {
			return e.PlaceOrder(NewOrderWithExit(MarketAt(f.Base().Close()), TakeProfitStopLoss(120, 0), 1, Buy))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1020.0, e.Wallet().Balance())
}

func TestRunWithAggregatorInvalid(t *testing.T) {
	t.Parallel()

	e := newEngine(t, longBars(t), 1000, nil)
	err := e.RunWithAggregator(Factors{}, func(*Engine, Frame) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidFactor)
	assert.Equal(t, Idle, e.State())
}

// keepingAggregation remembers every window it folds.
type keepingAggregation struct {
	factor int
	kept   [][]market.Candle
}

func (k *keepingAggregation) Factors() []int { return []int{k.factor} }

func (k *keepingAggregation) ShouldAggregate(factor int, window []market.Candle) bool {
	return len(window) == factor
}

func (k *keepingAggregation) Aggregate(window []market.Candle) (market.Candle, error) {
	k.kept = append(k.kept, window)
	return AggregateCandles(window)
}

func TestAggregationMayKeepWindows(t *testing.T) {
	t.Parallel()

	candles := []market.Candle{
		bar(t, 0, 100, 105, 95, 102),
		bar(t, 1, 102, 110, 101, 108),
		bar(t, 2, 108, 109, 90, 93),
		bar(t, 3, 93, 99, 92, 97),
	}
	e := newEngine(t, candles, 1000, nil)
	agg := &keepingAggregation{factor: 2}
	require.NoError(t, e.RunWithAggregator(agg, func(*Engine, Frame) error { return nil }))

	require.Len(t, agg.kept, 2)
	assert.Equal(t, candles[:2], agg.kept[0])
	assert.Equal(t, candles[2:], agg.kept[1])
}
