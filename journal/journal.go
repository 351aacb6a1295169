// Package journal persists what a backtest did: closed trades, the equity
// curve and summaries of backtest and optimizer runs.
package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rustyeddy/bts/sim"
)

// TradeRecord is one closed position.
type TradeRecord struct {
	RunID      string
	TradeID    string
	Side       string
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

// EquitySnapshot is the wallet at one WalletUpdate.
type EquitySnapshot struct {
	RunID         string
	Time          time.Time
	Balance       float64
	Locked        float64
	Free          float64
	UnrealizedPnL float64
	Fees          float64
}

// Equity is the balance marked to market.
func (s EquitySnapshot) Equity() float64 { return s.Balance + s.UnrealizedPnL }

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// NewRunID returns a fresh identifier for a backtest or optimizer run.
func NewRunID() string { return uuid.NewString() }

// TradeFromPosition converts a closed position. Open positions are rejected.
func TradeFromPosition(runID string, p sim.Position) (TradeRecord, error) {
	if !p.Closed() {
		return TradeRecord{}, fmt.Errorf("position %s is still open", p.ID)
	}
	return TradeRecord{
		RunID:      runID,
		TradeID:    p.ID,
		Side:       p.Side.String(),
		Quantity:   p.Quantity,
		EntryPrice: p.EntryPrice(),
		ExitPrice:  p.ExitPrice,
		OpenTime:   p.OpenedAt,
		CloseTime:  p.ClosedAt,
		RealizedPL: p.PnL(),
		Reason:     string(p.ExitReason),
	}, nil
}

func EquityFromSnapshot(runID string, at time.Time, s sim.WalletSnapshot) EquitySnapshot {
	return EquitySnapshot{
		RunID:         runID,
		Time:          at,
		Balance:       s.Balance,
		Locked:        s.Locked,
		Free:          s.Free,
		UnrealizedPnL: s.UnrealizedPnL,
		Fees:          s.Fees,
	}
}

// Replay writes an engine's event log to j: every DelPosition becomes a
// trade and every WalletUpdate a point of the equity curve. Order and
// position openings carry nothing the journal keeps.
func Replay(j Journal, runID string, events []sim.Event) error {
	for i, ev := range events {
		switch ev.Kind {
		case sim.DelPosition:
			if ev.Position == nil {
				continue
			}
			rec, err := TradeFromPosition(runID, *ev.Position)
			if err != nil {
				return fmt.Errorf("event %d: %w", i, err)
			}
			if err := j.RecordTrade(rec); err != nil {
				return fmt.Errorf("event %d: record trade: %w", i, err)
			}
		case sim.WalletUpdate:
			if ev.Wallet == nil {
				continue
			}
			if err := j.RecordEquity(EquityFromSnapshot(runID, ev.Time, *ev.Wallet)); err != nil {
				return fmt.Errorf("event %d: record equity: %w", i, err)
			}
		}
	}
	return nil
}
