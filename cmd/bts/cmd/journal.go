package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bts/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite journal",
	Long: `Query and display records from a SQLite journal.

Subcommands:
  trade         - Details of one trade of a run
  trades        - Every trade of a run
  day           - Trades closed on a specific day
  backtest      - Org report of a stored backtest
  optimizations - Stored optimizer runs, or the results of one

Examples:
  bts journal trades <run-id>
  bts journal day 2024-01-15
  bts journal optimizations <run-id> --top 5`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <run-id> <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(2),
	RunE:  runJournalTrade,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List the trades of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day (UTC)",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalBacktestCmd = &cobra.Command{
	Use:   "backtest <run-id>",
	Short: "Print the Org report of a stored backtest",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalBacktest,
}

var journalOptimizationsCmd = &cobra.Command{
	Use:   "optimizations [run-id]",
	Short: "List optimizer runs or the results of one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalOptimizations,
}

var (
	journalDBPath string
	journalTop    int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalBacktestCmd)
	journalCmd.AddCommand(journalOptimizationsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./bts.sqlite", "path to SQLite journal DB")
	journalOptimizationsCmd.Flags().IntVar(&journalTop, "top", 10, "results to show (0 = all)")
}

func withJournal(cmd *cobra.Command, fn func(ctx context.Context, j *journal.SQLite) error) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, j)
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	return withJournal(cmd, func(_ context.Context, j *journal.SQLite) error {
		rec, err := j.GetTrade(args[0], args[1])
		if err != nil {
			return fmt.Errorf("get trade: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
		return nil
	})
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	return withJournal(cmd, func(ctx context.Context, j *journal.SQLite) error {
		recs, err := j.ListTradesByRun(ctx, args[0])
		if err != nil {
			return fmt.Errorf("query trades: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
		return nil
	})
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	start, end, err := dayBounds(time.UTC, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	return withJournal(cmd, func(_ context.Context, j *journal.SQLite) error {
		recs, err := j.ListTradesClosedBetween(start, end)
		if err != nil {
			return fmt.Errorf("query trades: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
		return nil
	})
}

func runJournalBacktest(cmd *cobra.Command, args []string) error {
	return withJournal(cmd, func(ctx context.Context, j *journal.SQLite) error {
		run, err := j.GetBacktestRun(ctx, args[0])
		if err != nil {
			return err
		}
		return run.Report().WriteOrg(cmd.OutOrStdout())
	})
}

func runJournalOptimizations(cmd *cobra.Command, args []string) error {
	return withJournal(cmd, func(ctx context.Context, j *journal.SQLite) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer tw.Flush()

		if len(args) == 0 {
			runs, err := j.ListOptimizationRuns(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "RUN\tCREATED\tSTRATEGY\tDATASET\tCOMBINATIONS\tFAILURES")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
					r.RunID, r.Created.Format(time.RFC3339), r.Strategy, r.Dataset, r.Combinations, r.Failures)
			}
			return nil
		}

		rows, err := j.ListOptimizationResults(ctx, args[0], journalTop)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "RANK\tINDEX\tTOTAL\tPARAMS")
		for i, r := range rows {
			fmt.Fprintf(tw, "%d\t%d\t%.2f\t%s\n", i+1, r.Index, r.Value, r.Params)
		}
		return nil
	})
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
