package journal

import (
	"fmt"
	"time"

	"github.com/rustyeddy/bts/metrics"
	"github.com/rustyeddy/bts/optimizer"
)

// BacktestRun mirrors the backtest_runs table.
type BacktestRun struct {
	RunID    string
	Created  time.Time
	Strategy string
	Params   string
	Dataset  string

	metrics.Summary
}

// NewBacktestRun stamps a summary with a fresh run id.
func NewBacktestRun(strategy, params, dataset string, s metrics.Summary) BacktestRun {
	return BacktestRun{
		RunID:    NewRunID(),
		Created:  time.Now().UTC(),
		Strategy: strategy,
		Params:   params,
		Dataset:  dataset,
		Summary:  s,
	}
}

// Report turns the run into an Org write-up.
func (r BacktestRun) Report() *metrics.Report {
	return &metrics.Report{
		RunID:    r.RunID,
		Created:  r.Created,
		Strategy: r.Strategy,
		Params:   r.Params,
		Dataset:  r.Dataset,
		Summary:  r.Summary,
	}
}

// OptimizationRun mirrors the optimization_runs table.
type OptimizationRun struct {
	RunID        string
	Created      time.Time
	Strategy     string
	Dataset      string
	Workers      int
	Combinations int
	Failures     int
}

// OptimizationRow is one scored parameter combination.
type OptimizationRow struct {
	Index  int
	Params string
	Value  float64
}

// RowsFromResults flattens optimizer results, rendering params with %v.
func RowsFromResults[P any](rs []optimizer.Result[P]) []OptimizationRow {
	out := make([]OptimizationRow, 0, len(rs))
	for _, r := range rs {
		out = append(out, OptimizationRow{Index: r.Index, Params: fmt.Sprint(r.Params), Value: r.Value})
	}
	return out
}
