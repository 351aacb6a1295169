// Package market holds the price data the simulator replays: validated
// OHLCV candles, loaders for historical files and a deterministic sample
// generator.
package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidPriceOrder = errors.New("invalid price order")
	ErrNegativeVolume    = errors.New("negative volume")
	ErrInvalidTimes      = errors.New("invalid candle times")
)

// OHLCV is the raw, unvalidated form of a bar as it comes out of a file or
// a generator. Turn it into a Candle with NewCandle.
type OHLCV struct {
	Open      float64   `json:"open" yaml:"open"`
	High      float64   `json:"high" yaml:"high"`
	Low       float64   `json:"low" yaml:"low"`
	Close     float64   `json:"close" yaml:"close"`
	Volume    float64   `json:"volume" yaml:"volume"`
	Bid       float64   `json:"bid" yaml:"bid"`
	OpenTime  time.Time `json:"open_time" yaml:"open_time"`
	CloseTime time.Time `json:"close_time" yaml:"close_time"`
}

// Candle is an immutable OHLCV bar. The zero value is not meaningful;
// candles are only produced by NewCandle, which enforces
// low <= open,close <= high, volume >= 0 and open time <= close time.
type Candle struct {
	open, high, low, close float64
	volume, bid            float64
	openTime, closeTime    time.Time
}

// NewCandle validates raw bar data and returns the candle.
func NewCandle(v OHLCV) (Candle, error) {
	for _, p := range []float64{v.Open, v.High, v.Low, v.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Candle{}, fmt.Errorf("%w: non-finite price (open=%v, high=%v, low=%v, close=%v)",
				ErrInvalidPriceOrder, v.Open, v.High, v.Low, v.Close)
		}
	}
	if v.Low > v.High ||
		v.Open < v.Low || v.Open > v.High ||
		v.Close < v.Low || v.Close > v.High {
		return Candle{}, fmt.Errorf("%w: open=%v, high=%v, low=%v, close=%v",
			ErrInvalidPriceOrder, v.Open, v.High, v.Low, v.Close)
	}
	if v.Volume < 0 || math.IsNaN(v.Volume) {
		return Candle{}, fmt.Errorf("%w: %v", ErrNegativeVolume, v.Volume)
	}
	if v.CloseTime.Before(v.OpenTime) {
		return Candle{}, fmt.Errorf("%w: open=%s, close=%s", ErrInvalidTimes,
			v.OpenTime.Format(time.RFC3339), v.CloseTime.Format(time.RFC3339))
	}

	return Candle{
		open:      v.Open,
		high:      v.High,
		low:       v.Low,
		close:     v.Close,
		volume:    v.Volume,
		bid:       v.Bid,
		openTime:  v.OpenTime,
		closeTime: v.CloseTime,
	}, nil
}

// MustCandle is NewCandle for fixtures and literals known to be valid.
func MustCandle(v OHLCV) Candle {
	c, err := NewCandle(v)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Candle) Open() float64        { return c.open }
func (c Candle) High() float64        { return c.high }
func (c Candle) Low() float64         { return c.low }
func (c Candle) Close() float64       { return c.close }
func (c Candle) Volume() float64      { return c.volume }
func (c Candle) Bid() float64         { return c.bid }
func (c Candle) OpenTime() time.Time  { return c.openTime }
func (c Candle) CloseTime() time.Time { return c.closeTime }

// Ask is the taker-sell side of the volume: volume minus bid.
func (c Candle) Ask() float64 { return c.volume - c.bid }

// Contains reports whether price traded inside the bar, bounds included.
func (c Candle) Contains(price float64) bool {
	return price >= c.low && price <= c.high
}

// Bullish reports whether the bar closed at or above its open.
func (c Candle) Bullish() bool { return c.close >= c.open }

// OHLCV returns the raw values of the candle.
func (c Candle) OHLCV() OHLCV {
	return OHLCV{
		Open:      c.open,
		High:      c.high,
		Low:       c.low,
		Close:     c.close,
		Volume:    c.volume,
		Bid:       c.bid,
		OpenTime:  c.openTime,
		CloseTime: c.closeTime,
	}
}

func (c Candle) String() string {
	return fmt.Sprintf("%s O:%.5f H:%.5f L:%.5f C:%.5f V:%.2f",
		c.openTime.Format(time.RFC3339), c.open, c.high, c.low, c.close, c.volume)
}
