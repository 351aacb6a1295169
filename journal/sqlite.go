package journal

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, trade_id, side, quantity, entry_price, exit_price, open_time, close_time, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.TradeID, t.Side, t.Quantity, t.EntryPrice,
		t.ExitPrice, t.OpenTime.UTC(), t.CloseTime.UTC(), t.RealizedPL, t.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, balance, locked, free, unrealized_pl, fees)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Time.UTC(), e.Balance, e.Locked, e.Free, e.UnrealizedPnL, e.Fees,
	)
	return err
}

// RecordBacktest stores the summary of one backtest. An infinite profit
// factor is stored as NULL.
func (j *SQLite) RecordBacktest(ctx context.Context, r BacktestRun) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO backtest_runs
		(run_id, created, strategy, params, dataset, start_time, end_time,
		 initial_balance, final_equity, net_pl, fees,
		 trades, wins, losses, win_rate, profit_factor, max_dd_pct, sharpe)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.Strategy, r.Params, r.Dataset, r.Start.UTC(), r.End.UTC(),
		r.InitialBalance, r.FinalEquity, r.NetPnL, r.Fees,
		r.Trades, r.Wins, r.Losses, r.WinRate, finite(r.ProfitFactor), r.MaxDrawdown, r.Sharpe,
	)
	if err != nil {
		return fmt.Errorf("record backtest %s: %w", r.RunID, err)
	}
	return nil
}

// RecordOptimization stores a run and its rows in one transaction.
func (j *SQLite) RecordOptimization(ctx context.Context, run OptimizationRun, rows []OptimizationRow) (err error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO optimization_runs
		(run_id, created, strategy, dataset, workers, combinations, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Created.UTC(), run.Strategy, run.Dataset, run.Workers, run.Combinations, run.Failures,
	); err != nil {
		return fmt.Errorf("record optimization %s: %w", run.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO optimization_results (run_id, idx, params, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err = stmt.ExecContext(ctx, run.RunID, r.Index, r.Params, r.Value); err != nil {
			return fmt.Errorf("record optimization %s row %d: %w", run.RunID, r.Index, err)
		}
	}
	return tx.Commit()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func finite(x float64) sql.NullFloat64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: x, Valid: true}
}
