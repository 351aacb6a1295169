package indicators

import (
	"fmt"

	"github.com/rustyeddy/bts/market"
)

// MACDOutput is one MACD reading.
type MACDOutput struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD is the moving average convergence divergence: fast EMA minus slow
// EMA, with a signal EMA of that difference.
type MACD struct {
	fast, slow, signal *EMA
	seen               int
	out                MACDOutput
}

// DefaultMACD uses the classic 12, 26, 9 periods.
func DefaultMACD() *MACD {
	m, _ := NewMACD(12, 26, 9)
	return m
}

func NewMACD(fast, slow, signal int) (*MACD, error) {
	f, err := NewEMA(fast)
	if err != nil {
		return nil, fmt.Errorf("macd fast: %w", err)
	}
	s, err := NewEMA(slow)
	if err != nil {
		return nil, fmt.Errorf("macd slow: %w", err)
	}
	sig, err := NewEMA(signal)
	if err != nil {
		return nil, fmt.Errorf("macd signal: %w", err)
	}
	return &MACD{fast: f, slow: s, signal: sig}, nil
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD(%d,%d,%d)", m.fast.period, m.slow.period, m.signal.period)
}

func (m *MACD) Warmup() int {
	return max(m.fast.period, m.slow.period) + m.signal.period - 1
}

func (m *MACD) Ready() bool { return m.seen >= m.Warmup() }

// Value is the histogram, the reading strategies usually act on.
func (m *MACD) Value() float64 { return m.out.Histogram }

func (m *MACD) Output() MACDOutput { return m.out }

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.seen = 0
	m.out = MACDOutput{}
}

func (m *MACD) Update(c market.Candle) { m.Next(c.Close()) }

// Next feeds a raw value and returns the updated reading.
func (m *MACD) Next(x float64) MACDOutput {
	m.seen++
	line := m.fast.Next(x) - m.slow.Next(x)
	sig := m.signal.Next(line)
	m.out = MACDOutput{MACD: line, Signal: sig, Histogram: line - sig}
	return m.out
}
