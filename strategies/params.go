package strategies

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/bts/indicators"
	"github.com/rustyeddy/bts/market"
	"github.com/rustyeddy/bts/sim"
)

// Params configures the sample strategies. Percentages are human readable:
// 2 means 2%.
type Params struct {
	EMAPeriod  int `json:"ema-period" yaml:"ema_period"`
	MACDFast   int `json:"macd-fast" yaml:"macd_fast"`
	MACDSlow   int `json:"macd-slow" yaml:"macd_slow"`
	MACDSignal int `json:"macd-signal" yaml:"macd_signal"`

	TrailingPercent   float64 `json:"trailing-percent" yaml:"trailing_percent"`
	TakeProfitPercent float64 `json:"take-profit-percent" yaml:"take_profit_percent"`
	StopLossPercent   float64 `json:"stop-loss-percent" yaml:"stop_loss_percent"`

	// RiskPercent of the free balance goes into each entry, but never less
	// than MinAmount.
	RiskPercent float64 `json:"risk-percent" yaml:"risk_percent"`
	MinAmount   float64 `json:"min-amount" yaml:"min_amount"`

	// Factor is the higher timeframe, in base candles, for mtf-trailing.
	Factor int `json:"factor" yaml:"factor"`
}

func DefaultParams() Params {
	return Params{
		EMAPeriod:         100,
		MACDFast:          12,
		MACDSlow:          26,
		MACDSignal:        9,
		TrailingPercent:   2,
		TakeProfitPercent: 6,
		StopLossPercent:   2,
		RiskPercent:       2,
		MinAmount:         21,
		Factor:            4,
	}
}

func (p Params) Validate() error {
	if p.EMAPeriod <= 0 || p.MACDFast <= 0 || p.MACDSlow <= 0 || p.MACDSignal <= 0 {
		return fmt.Errorf("strategy: indicator periods must be > 0 (ema=%d, macd=%d/%d/%d)",
			p.EMAPeriod, p.MACDFast, p.MACDSlow, p.MACDSignal)
	}
	if p.RiskPercent <= 0 || p.RiskPercent > 100 {
		return errors.New("strategy: risk percent must be in (0, 100]")
	}
	if p.MinAmount < 0 {
		return errors.New("strategy: min amount must be >= 0")
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("EMA %d, MACD (%d, %d, %d), trailing %.2f%%",
		p.EMAPeriod, p.MACDFast, p.MACDSlow, p.MACDSignal, p.TrailingPercent)
}

// trend is the EMA + MACD entry filter shared by the sample strategies:
// long when the close is above the EMA and the MACD histogram is positive.
type trend struct {
	ema  *indicators.EMA
	macd *indicators.MACD
}

func newTrend(p Params) (*trend, error) {
	ema, err := indicators.NewEMA(p.EMAPeriod)
	if err != nil {
		return nil, err
	}
	macd, err := indicators.NewMACD(p.MACDFast, p.MACDSlow, p.MACDSignal)
	if err != nil {
		return nil, err
	}
	return &trend{ema: ema, macd: macd}, nil
}

func (t *trend) update(c market.Candle) bool {
	t.ema.Update(c)
	t.macd.Update(c)
	if !t.ema.Ready() || !t.macd.Ready() {
		return false
	}
	return c.Close() > t.ema.Value() && t.macd.Value() > 0
}

func (t *trend) reset() {
	t.ema.Reset()
	t.macd.Reset()
}

// entryQuantity sizes a long entry at price. It returns 0 when the account
// is below half its starting balance or cannot afford the entry.
func entryQuantity(e *sim.Engine, p Params, price float64) (float64, error) {
	free, err := e.Wallet().FreeBalance()
	if err != nil {
		return 0, err
	}
	if free <= e.Wallet().InitialBalance()/2 {
		return 0, nil
	}
	amount := max(market.HowMany(free, p.RiskPercent), p.MinAmount)
	if amount > free {
		return 0, nil
	}
	return amount / price, nil
}
