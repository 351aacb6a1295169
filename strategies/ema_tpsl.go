package strategies

import (
	"errors"

	"github.com/rustyeddy/bts/market"
	"github.com/rustyeddy/bts/sim"
)

// EMATakeProfit enters like EMAMACDTrailing but exits on fixed take-profit
// and stop-loss levels around the entry.
type EMATakeProfit struct {
	Params
	trend *trend
}

func NewEMATakeProfit(p Params) (*EMATakeProfit, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.TakeProfitPercent < 0 || p.StopLossPercent < 0 || p.StopLossPercent >= 100 {
		return nil, errors.New("ema-tpsl: take profit and stop loss percent must be in [0, 100)")
	}
	t, err := newTrend(p)
	if err != nil {
		return nil, err
	}
	return &EMATakeProfit{Params: p, trend: t}, nil
}

func (s *EMATakeProfit) Name() string { return "ema-tpsl" }
func (s *EMATakeProfit) Reset()       { s.trend.reset() }

func (s *EMATakeProfit) OnCandle(e *sim.Engine, c market.Candle) error {
	if !s.trend.update(c) {
		return nil
	}
	price := c.Close()
	qty, err := entryQuantity(e, s.Params, price)
	if err != nil || qty <= 0 {
		return err
	}

	var tp, sl float64
	if s.TakeProfitPercent > 0 {
		tp = market.AddPercent(price, s.TakeProfitPercent)
	}
	if s.StopLossPercent > 0 {
		sl = market.SubPercent(price, s.StopLossPercent)
	}
	return e.PlaceOrder(sim.NewOrderWithExit(sim.MarketAt(price), sim.TakeProfitStopLoss(tp, sl), qty, sim.Buy))
}
