package market

import (
	"math/rand"
	"time"
)

// GenerateConfig describes a synthetic random-walk series.
type GenerateConfig struct {
	Count     int
	Seed      int64
	BasePrice float64
	Start     time.Time
	Timeframe time.Duration
}

// Generate returns a deterministic random walk: every close moves up to 4%
// from its open, highs and lows extend up to 3% beyond the body, and each
// bar opens at the previous close. The same config always yields the same
// candles.
func Generate(cfg GenerateConfig) []Candle {
	if cfg.Count <= 0 {
		return nil
	}
	if cfg.BasePrice <= 0 {
		cfg.BasePrice = 100
	}
	if cfg.Timeframe <= 0 {
		cfg.Timeframe = 24 * time.Hour
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	between := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	candles := make([]Candle, 0, cfg.Count)
	open := cfg.BasePrice
	openTime := cfg.Start

	for i := 0; i < cfg.Count; i++ {
		cls := AddPercent(open, between(-4, 4))
		high := AddPercent(max(open, cls), between(0, 3))
		low := SubPercent(min(open, cls), between(0, 3))
		volume := AddPercent(1000, between(-15, 15))

		c := MustCandle(OHLCV{
			Open:      open,
			High:      high,
			Low:       low,
			Close:     cls,
			Volume:    volume,
			Bid:       volume * between(0.33, 0.77),
			OpenTime:  openTime,
			CloseTime: openTime.Add(cfg.Timeframe),
		})
		candles = append(candles, c)

		open = cls
		openTime = c.CloseTime()
	}
	return candles
}
