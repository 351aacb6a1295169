// Package metrics derives performance figures from an engine's event log.
package metrics

import (
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/bts/sim"
)

// Metrics computes key figures over a finished backtest. All of them are
// read from the event log, so they can be recomputed from a saved run.
type Metrics struct {
	events         []sim.Event
	initialBalance float64
}

// New wraps an event log and the balance the run started with.
func New(events []sim.Event, initialBalance float64) *Metrics {
	return &Metrics{events: events, initialBalance: initialBalance}
}

// FromEngine takes a copy of e's events.
func FromEngine(e *sim.Engine) *Metrics {
	return New(e.Events(), e.Wallet().InitialBalance())
}

func (m *Metrics) InitialBalance() float64 { return m.initialBalance }

// balances is the wallet balance after every WalletUpdate, in order.
func (m *Metrics) balances() []float64 {
	var out []float64
	for _, ev := range m.events {
		if ev.Kind == sim.WalletUpdate && ev.Wallet != nil {
			out = append(out, ev.Wallet.Balance)
		}
	}
	return out
}

// closed is every position that left the book.
func (m *Metrics) closed() []sim.Position {
	var out []sim.Position
	for _, ev := range m.events {
		if ev.Kind == sim.DelPosition && ev.Position != nil {
			out = append(out, *ev.Position)
		}
	}
	return out
}

// MaxDrawdown is the largest fall from a running peak of the cash balance,
// in percent. The peak starts at the initial balance. A fill moves the
// position cost out of the balance, so committing most of the account to a
// winning trade still reads as a deep cash drawdown; see MaxEquityDrawdown.
func (m *Metrics) MaxDrawdown() float64 {
	return drawdown(m.initialBalance, m.balances())
}

// MaxEquityDrawdown is MaxDrawdown over the balance plus the cost of open
// positions. Marks are not logged, so open positions count at cost.
func (m *Metrics) MaxEquityDrawdown() float64 {
	return drawdown(m.initialBalance, m.equity())
}

// equity is the balance plus open position cost after each event. A fill or
// close logs the wallet just before the position, so that pair counts once.
func (m *Metrics) equity() []float64 {
	var out []float64
	var balance, open float64
	seen := false
	for i, ev := range m.events {
		switch {
		case ev.Kind == sim.WalletUpdate && ev.Wallet != nil:
			balance, seen = ev.Wallet.Balance, true
		case ev.Kind == sim.AddPosition && ev.Position != nil:
			open += ev.Position.Cost()
		case ev.Kind == sim.DelPosition && ev.Position != nil:
			open -= ev.Position.Cost()
		}
		if !seen {
			continue
		}
		if ev.Kind == sim.WalletUpdate && i+1 < len(m.events) {
			if k := m.events[i+1].Kind; k == sim.AddPosition || k == sim.DelPosition {
				continue
			}
		}
		out = append(out, balance+open)
	}
	return out
}

func drawdown(peak float64, series []float64) float64 {
	dd := 0.0
	for _, b := range series {
		if b > peak {
			peak = b
		}
		if peak <= 0 {
			continue
		}
		if d := (peak - b) / peak; d > dd {
			dd = d
		}
	}
	return dd * 100
}

// ProfitFactor is gross profit over gross loss of closed positions.
// It is +Inf when nothing was lost, including when nothing was traded.
func (m *Metrics) ProfitFactor() float64 {
	var gains, losses float64
	for _, p := range m.closed() {
		if pnl := p.PnL(); pnl > 0 {
			gains += pnl
		} else {
			losses += -pnl
		}
	}
	if losses == 0 {
		return math.Inf(1)
	}
	return gains / losses
}

// SharpeRatio is the mean per-update return in excess of riskFree divided
// by the population standard deviation of those returns. Zero when the
// returns do not vary.
func (m *Metrics) SharpeRatio(riskFree float64) float64 {
	var returns []float64
	prev := m.initialBalance
	for _, b := range m.balances() {
		if prev != 0 {
			returns = append(returns, (b-prev)/prev)
		}
		prev = b
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return (mean - riskFree) / std
}

// WinRate is the share of closed positions with a positive P&L, in percent.
func (m *Metrics) WinRate() float64 {
	ps := m.closed()
	if len(ps) == 0 {
		return 0
	}
	wins := 0
	for _, p := range ps {
		if p.PnL() > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(ps)) * 100
}

// Trades counts closed positions, winners and losers. Breakeven trades
// count as losses.
func (m *Metrics) Trades() (total, wins, losses int) {
	for _, p := range m.closed() {
		total++
		if p.PnL() > 0 {
			wins++
		} else {
			losses++
		}
	}
	return total, wins, losses
}

func (m *Metrics) String() string {
	var b strings.Builder
	b.WriteString("=== Backtest Metrics ===\n")
	fmt.Fprintf(&b, "Initial Balance: %.2f\n", m.initialBalance)
	fmt.Fprintf(&b, "Max Drawdown: %.2f%%\n", m.MaxDrawdown())
	fmt.Fprintf(&b, "Max Equity Drawdown: %.2f%%\n", m.MaxEquityDrawdown())
	fmt.Fprintf(&b, "Profit Factor: %.2f\n", m.ProfitFactor())
	fmt.Fprintf(&b, "Sharpe Ratio (risk-free rate = 0.0): %.2f\n", m.SharpeRatio(0))
	fmt.Fprintf(&b, "Win Rate: %.2f%%\n", m.WinRate())
	return b.String()
}
