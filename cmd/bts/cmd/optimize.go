package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/bts/journal"
	"github.com/rustyeddy/bts/optimizer"
	"github.com/rustyeddy/bts/strategies"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Search strategy parameters in parallel",
	Long: `Optimize runs the configured strategy once per combination of the
optimizer grid and ranks the combinations by final total balance.

Examples:
  bts optimize --ema-from 20 --ema-to 200 --ema-step 20 --trailing 1,2,3
  bts optimize -c bts.yaml --workers 8 --top 5 --db bts.sqlite`,
	RunE: runOptimize,
}

var (
	optStrategy string
	optWorkers  int
	optTop      int
	optEMAFrom  int
	optEMATo    int
	optEMAStep  int
	optMACDFrom int
	optMACDTo   int
	optTrailing []float64
	optDBPath   string
)

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().StringVarP(&optStrategy, "strategy", "s", "", "strategy name; overrides strategy.name")
	optimizeCmd.Flags().IntVarP(&optWorkers, "workers", "w", 0, "worker count (0 = number of CPUs)")
	optimizeCmd.Flags().IntVar(&optTop, "top", 0, "print the best N combinations (0 = all)")
	optimizeCmd.Flags().IntVar(&optEMAFrom, "ema-from", 0, "first EMA period")
	optimizeCmd.Flags().IntVar(&optEMATo, "ema-to", 0, "last EMA period")
	optimizeCmd.Flags().IntVar(&optEMAStep, "ema-step", 0, "EMA period step")
	optimizeCmd.Flags().IntVar(&optMACDFrom, "macd-from", 0, "smallest MACD period")
	optimizeCmd.Flags().IntVar(&optMACDTo, "macd-to", 0, "largest MACD period")
	optimizeCmd.Flags().Float64SliceVar(&optTrailing, "trailing", nil, "trailing stop percents")
	optimizeCmd.Flags().StringVar(&optDBPath, "db", "", "record results in this SQLite journal")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("strategy") {
		cfg.Strategy.Name = optStrategy
	}
	o := &cfg.Optimizer
	if flags.Changed("workers") {
		o.Workers = optWorkers
	}
	if flags.Changed("top") {
		o.Top = optTop
	}
	if flags.Changed("ema-from") {
		o.EMAFrom = optEMAFrom
	}
	if flags.Changed("ema-to") {
		o.EMATo = optEMATo
	}
	if flags.Changed("ema-step") {
		o.EMAStep = optEMAStep
	}
	if flags.Changed("macd-from") {
		o.MACDFrom = optMACDFrom
	}
	if flags.Changed("macd-to") {
		o.MACDTo = optMACDTo
	}
	if flags.Changed("trailing") {
		o.TrailingPercents = optTrailing
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cs, err := cfg.Candles()
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}
	candles, dataset := cs.Candles, cs.Source
	if gaps := cs.Gaps(); len(gaps) > 0 {
		log.Warn("candle series has gaps",
			zap.Int("gaps", len(gaps)),
			zap.Int("first_index", gaps[0].Idx),
			zap.Duration("timeframe", cs.Timeframe))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	grid := cfg.Grid()
	log.Info("optimizer starting",
		zap.String("strategy", cfg.Strategy.Name),
		zap.String("dataset", dataset),
		zap.Int("candles", len(candles)),
		zap.Int("combinations", len(grid.Generate())))

	start := time.Now()
	results, runErr := strategies.Optimize(ctx, optimizer.Optimizer{
		Candles:        candles,
		InitialBalance: cfg.Account.Balance,
		Fees:           cfg.SimFees(),
		Workers:        o.Workers,
		Logger:         log.Named("optimizer"),
	}, cfg.Strategy.Name, grid)

	var combErr *optimizer.CombinationError
	if runErr != nil && !errors.As(runErr, &combErr) {
		return fmt.Errorf("optimize: %w", runErr)
	}
	failures := 0
	if runErr != nil {
		// failed and skipped combinations alike have no result
		failures = len(grid.Generate()) - len(results)
		log.Warn("some combinations failed", zap.Error(runErr))
	}

	runID := journal.NewRunID()
	log.Info("optimizer finished",
		zap.String("run_id", runID),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))

	if optDBPath != "" {
		j, err := journal.NewSQLite(optDBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer j.Close()

		err = j.RecordOptimization(ctx, journal.OptimizationRun{
			RunID:        runID,
			Created:      time.Now().UTC(),
			Strategy:     cfg.Strategy.Name,
			Dataset:      dataset,
			Workers:      o.Workers,
			Combinations: len(results) + failures,
			Failures:     failures,
		}, journal.RowsFromResults(results))
		if err != nil {
			return err
		}
	}

	top := o.Top
	if top <= 0 {
		top = -1
	}
	printResults(cmd, runID, optimizer.Best(results, top))
	return runErr
}

func printResults(cmd *cobra.Command, runID string, rs []optimizer.Result[strategies.Params]) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run ID: %s\n", runID)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tINDEX\tTOTAL\tPARAMS")
	for i, r := range rs {
		fmt.Fprintf(tw, "%d\t%d\t%.2f\t%s\n", i+1, r.Index, r.Value, r.Params)
	}
	_ = tw.Flush()
}
