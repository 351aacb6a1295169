package sim

import (
	"fmt"
	"math"
	"time"
)

// PositionSide is the market exposure of a position.
type PositionSide int8

const (
	Long PositionSide = iota + 1
	Short
)

func (s PositionSide) String() string {
	switch s {
	case Long:
		return "Long"
	case Short:
		return "Short"
	}
	return fmt.Sprintf("PositionSide(%d)", int8(s))
}

// sign is +1 for Long and -1 for Short.
func (s PositionSide) sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitNone         ExitReason = ""
	ExitTakeProfit   ExitReason = "TakeProfit"
	ExitStopLoss     ExitReason = "StopLoss"
	ExitTrailingStop ExitReason = "TrailingStop"
	ExitManual       ExitReason = "Manual"
)

// Position is a filled order. Its identity is the order ID.
type Position struct {
	Order
	Side PositionSide

	OpenedAt time.Time
	ClosedAt time.Time

	// Set when the position is closed.
	ExitPrice  float64
	ExitReason ExitReason

	// UnrealizedPnL is the P&L marked at the last candle close.
	UnrealizedPnL float64
}

func newPosition(o Order, at time.Time) Position {
	side := Long
	if o.Side == Sell {
		side = Short
	}
	return Position{Order: o.clone(), Side: side, OpenedAt: at}
}

// EstimatePnL is the P&L the position would realize at price.
func (p Position) EstimatePnL(price float64) (float64, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("position %s: %w: %v", p.ID, ErrExitPrice, price)
	}
	return p.Side.sign() * (price - p.EntryPrice()) * p.Quantity, nil
}

// Closed reports whether an exit price has been recorded.
func (p Position) Closed() bool { return p.ExitReason != ExitNone }

// PnL is the realized P&L of a closed position, before fees.
func (p Position) PnL() float64 {
	if !p.Closed() {
		return 0
	}
	return p.Side.sign() * (p.ExitPrice - p.EntryPrice()) * p.Quantity
}

// Duration is how long the position was held. Zero while open.
func (p Position) Duration() time.Duration {
	if !p.Closed() {
		return 0
	}
	return p.ClosedAt.Sub(p.OpenedAt)
}

func (p Position) String() string {
	s := fmt.Sprintf("%s %s %v @ %v", p.ID, p.Side, p.Quantity, p.EntryPrice())
	if p.Closed() {
		s += fmt.Sprintf(" -> %v (%s)", p.ExitPrice, p.ExitReason)
	}
	return s
}
