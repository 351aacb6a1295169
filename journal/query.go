package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrNotFound = errors.New("not found")

const tradeColumns = `run_id, trade_id, side, quantity, entry_price, exit_price, open_time, close_time, realized_pl, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.RunID,
		&rec.TradeID,
		&rec.Side,
		&rec.Quantity,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.RealizedPL,
		&rec.Reason,
	)
	return rec, err
}

// GetTrade returns a single trade record of a run.
func (j *SQLite) GetTrade(runID, tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE run_id = ? AND trade_id = ?`, runID, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesByRun returns the trades of a run in close order.
func (j *SQLite) ListTradesByRun(ctx context.Context, runID string) ([]TradeRecord, error) {
	return j.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE run_id = ?
		ORDER BY close_time ASC, trade_id ASC`, runID)
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	return j.queryTrades(context.Background(), `SELECT `+tradeColumns+` FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
}

func (j *SQLite) queryTrades(ctx context.Context, query string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBetween returns equity points within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, balance, locked, free, unrealized_pl, fees
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, rowid ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var rec EquitySnapshot
		if err := rows.Scan(
			&rec.RunID,
			&rec.Time,
			&rec.Balance,
			&rec.Locked,
			&rec.Free,
			&rec.UnrealizedPnL,
			&rec.Fees,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBacktestRun loads a stored backtest summary.
func (j *SQLite) GetBacktestRun(ctx context.Context, runID string) (BacktestRun, error) {
	var (
		r  BacktestRun
		pf sql.NullFloat64
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT run_id, created, strategy, params, dataset, start_time, end_time,
		       initial_balance, final_equity, net_pl, fees,
		       trades, wins, losses, win_rate, profit_factor, max_dd_pct, sharpe
		FROM backtest_runs WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.Created, &r.Strategy, &r.Params, &r.Dataset, &r.Start, &r.End,
		&r.InitialBalance, &r.FinalEquity, &r.NetPnL, &r.Fees,
		&r.Trades, &r.Wins, &r.Losses, &r.WinRate, &pf, &r.MaxDrawdown, &r.Sharpe,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BacktestRun{}, fmt.Errorf("backtest run %q: %w", runID, ErrNotFound)
		}
		return BacktestRun{}, err
	}

	r.ProfitFactor = math.Inf(1)
	if pf.Valid {
		r.ProfitFactor = pf.Float64
	}
	if !r.InitialBalance.IsZero() {
		r.ReturnPct = r.NetPnL.Div(r.InitialBalance).Shift(2).Round(2)
	}
	return r, nil
}

// ListOptimizationRuns returns every stored optimizer run, newest first.
func (j *SQLite) ListOptimizationRuns(ctx context.Context) ([]OptimizationRun, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, created, strategy, dataset, workers, combinations, failures
		FROM optimization_runs
		ORDER BY created DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OptimizationRun
	for rows.Next() {
		var r OptimizationRun
		if err := rows.Scan(&r.RunID, &r.Created, &r.Strategy, &r.Dataset, &r.Workers, &r.Combinations, &r.Failures); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListOptimizationResults returns the rows of a run, best value first.
// A limit <= 0 returns all of them.
func (j *SQLite) ListOptimizationResults(ctx context.Context, runID string, limit int) ([]OptimizationRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT idx, params, value
		FROM optimization_results
		WHERE run_id = ?
		ORDER BY value DESC, idx ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OptimizationRow
	for rows.Next() {
		var r OptimizationRow
		if err := rows.Scan(&r.Index, &r.Params, &r.Value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
