package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/bts/config"
	"github.com/rustyeddy/bts/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "bts",
	Short: "Candle-replay backtesting engine and parameter optimizer",
	Long: `bts replays OHLCV candles through trading strategies.

It provides tools for:
  - Backtesting a strategy over CSV/JSON candles or a generated random walk
  - Searching strategy parameters in parallel
  - Journaling trades and equity to CSV or SQLite
  - Writing Org-mode reports of each run

Run "bts config init" to start from a default configuration.`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
}

// loadConfig reads --config, or the defaults when it is not set.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgFile)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(level)
}
