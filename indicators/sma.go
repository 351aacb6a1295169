package indicators

import (
	"fmt"

	"github.com/rustyeddy/bts/market"
)

// SMA is a simple moving average of the last period closes.
type SMA struct {
	period int
	window []float64
	sum    float64
}

func NewSMA(period int) (*SMA, error) {
	if period <= 0 {
		return nil, fmt.Errorf("sma: period must be > 0, got %d", period)
	}
	return &SMA{period: period, window: make([]float64, 0, period)}, nil
}

func (m *SMA) Name() string { return fmt.Sprintf("SMA(%d)", m.period) }
func (m *SMA) Warmup() int  { return m.period }
func (m *SMA) Ready() bool  { return len(m.window) >= m.period }

func (m *SMA) Reset() {
	m.window = m.window[:0]
	m.sum = 0
}

func (m *SMA) Update(c market.Candle) {
	x := c.Close()
	m.window = append(m.window, x)
	m.sum += x
	if len(m.window) > m.period {
		m.sum -= m.window[0]
		m.window = m.window[1:]
	}
}

func (m *SMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.sum / float64(len(m.window))
}
