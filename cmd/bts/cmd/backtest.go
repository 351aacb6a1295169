package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/bts/config"
	"github.com/rustyeddy/bts/journal"
	"github.com/rustyeddy/bts/metrics"
	"github.com/rustyeddy/bts/sim"
	"github.com/rustyeddy/bts/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay candles through a strategy",
	Long: `Backtest replays the configured candles through one strategy and prints
its metrics.

Supported strategies:
  - noop: does nothing (baseline)
  - ema-macd-trailing: EMA + MACD trend filter, trailing stop exit
  - ema-tpsl: EMA + MACD trend filter, take-profit / stop-loss exit
  - mtf-trailing: ema-macd-trailing gated by a bullish higher-timeframe candle

Examples:
  bts backtest --data data/btc-1h.csv --strategy ema-macd-trailing
  bts backtest -c bts.yaml --journal sqlite --db bts.sqlite --org run.org`,
	RunE: runBacktest,
}

var (
	btData     string
	btStrategy string
	btBalance  float64
	btNoFees   bool
	btCloseEnd bool
	btJournal  string
	btDBPath   string
	btTrades   string
	btEquity   string
	btOrg      string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btData, "data", "d", "", "candle file (.csv or .json); overrides data.path")
	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "", "strategy name; overrides strategy.name")
	backtestCmd.Flags().Float64VarP(&btBalance, "balance", "b", 0, "starting balance; overrides account.balance")
	backtestCmd.Flags().BoolVar(&btNoFees, "no-fees", false, "disable fees")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "close open positions at the last close")
	backtestCmd.Flags().StringVarP(&btJournal, "journal", "j", "", "journal type (none, csv, sqlite); overrides journal.type")
	backtestCmd.Flags().StringVar(&btDBPath, "db", "", "SQLite journal path")
	backtestCmd.Flags().StringVar(&btTrades, "trades", "", "CSV trades journal path")
	backtestCmd.Flags().StringVar(&btEquity, "equity", "", "CSV equity journal path")
	backtestCmd.Flags().StringVar(&btOrg, "org", "", "write an Org-mode report to this path")
}

func backtestConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Data.Path = btData
	}
	if flags.Changed("strategy") {
		cfg.Strategy.Name = btStrategy
	}
	if flags.Changed("balance") {
		cfg.Account.Balance = btBalance
	}
	if btNoFees {
		cfg.Fees.Enabled = false
	}
	if flags.Changed("journal") {
		cfg.Journal.Type = btJournal
	}
	if flags.Changed("db") {
		cfg.Journal.DBPath = btDBPath
	}
	if flags.Changed("trades") {
		cfg.Journal.TradesFile = btTrades
	}
	if flags.Changed("equity") {
		cfg.Journal.EquityFile = btEquity
	}
	if flags.Changed("org") {
		cfg.Journal.OrgFile = btOrg
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := backtestConfig(cmd)
	if err != nil {
		return err
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

	strat, err := strategies.ByName(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	e, err := sim.New(candles, sim.Config{
		InitialBalance: cfg.Account.Balance,
		Fees:           cfg.SimFees(),
		Logger:         log.Named("engine"),
	})
	if err != nil {
		return err
	}

	log.Info("backtest starting",
		zap.String("strategy", cfg.Strategy.Name),
		zap.String("dataset", dataset),
		zap.Int("candles", len(candles)),
		zap.Float64("balance", cfg.Account.Balance))

	start := time.Now()
	if err := strategies.Run(e, strat); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	if btCloseEnd {
		last := candles[len(candles)-1]
		if err := e.CloseAllPositions(last.Close()); err != nil {
			return fmt.Errorf("close at end: %w", err)
		}
	}

	run := journal.NewBacktestRun(cfg.Strategy.Name, cfg.Strategy.Params.String(), dataset, metrics.Summarize(e))
	log.Info("backtest finished",
		zap.String("run_id", run.RunID),
		zap.Int("trades", run.Trades),
		zap.Duration("elapsed", time.Since(start)))

	out := cmd.OutOrStdout()
	fmt.Fprint(out, metrics.FromEngine(e))
	fmt.Fprintf(out, "Final Equity: %s\n", run.FinalEquity.StringFixed(2))
	fmt.Fprintf(out, "Net P/L: %s (%s%%)\n", run.NetPnL.StringFixed(2), run.ReturnPct.StringFixed(2))
	fmt.Fprintf(out, "Fees: %s\n", run.Fees.StringFixed(2))
	fmt.Fprintf(out, "Trades: %d (wins %d, losses %d)\n", run.Trades, run.Wins, run.Losses)
	fmt.Fprintf(out, "Run ID: %s\n", run.RunID)

	if err := writeJournal(cmd.Context(), cfg, run, e.Events()); err != nil {
		return err
	}

	if cfg.Journal.OrgFile != "" {
		rep := run.Report()
		rep.Timeframe = cs.Timeframe.String()
		if err := rep.WriteOrgFile(cfg.Journal.OrgFile); err != nil {
			return fmt.Errorf("org report: %w", err)
		}
		log.Info("report written", zap.String("path", cfg.Journal.OrgFile))
	}
	return nil
}

// writeJournal replays the events into the configured journal. SQLite
// also keeps the run summary.
func writeJournal(ctx context.Context, cfg *config.Config, run journal.BacktestRun, events []sim.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.Journal.Type {
	case "csv":
		j, err := journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		if err := journal.Replay(j, run.RunID, events); err != nil {
			_ = j.Close()
			return fmt.Errorf("journal: %w", err)
		}
		return j.Close()

	case "sqlite":
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer j.Close()
		if err := journal.Replay(j, run.RunID, events); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		return j.RecordBacktest(ctx, run)
	}
	return nil
}
