package metrics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/bts/sim"
)

// Summary is the headline of one backtest. Money is rounded to cents.
type Summary struct {
	Start time.Time
	End   time.Time

	InitialBalance decimal.Decimal
	FinalEquity    decimal.Decimal
	NetPnL         decimal.Decimal
	ReturnPct      decimal.Decimal
	Fees           decimal.Decimal

	Trades int
	Wins   int
	Losses int
	Open   int

	WinRate      float64
	ProfitFactor float64
	MaxDrawdown  float64
	Sharpe       float64
}

// Summarize reads the wallet and event log of e. Open positions are valued
// at their cost plus unrealized P&L.
func Summarize(e *sim.Engine) Summary {
	m := FromEngine(e)
	w := e.Wallet()

	equity := w.TotalBalance()
	open := e.Positions()
	for _, p := range open {
		equity += p.Cost()
	}

	initial := money(w.InitialBalance())
	final := money(equity)
	net := final.Sub(initial)

	s := Summary{
		InitialBalance: initial,
		FinalEquity:    final,
		NetPnL:         net,
		Fees:           money(w.FeesPaid()),
		Open:           len(open),
		WinRate:        m.WinRate(),
		ProfitFactor:   m.ProfitFactor(),
		MaxDrawdown:    m.MaxDrawdown(),
		Sharpe:         m.SharpeRatio(0),
	}
	if !initial.IsZero() {
		s.ReturnPct = net.Div(initial).Mul(decimal.NewFromInt(100)).Round(2)
	}
	s.Trades, s.Wins, s.Losses = m.Trades()

	if cs := e.Candles(); len(cs) > 0 {
		s.Start = cs[0].OpenTime()
		s.End = cs[len(cs)-1].CloseTime()
	}
	return s
}

func money(x float64) decimal.Decimal {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(x).Round(2)
}
