package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/bts/market"
	"github.com/rustyeddy/bts/sim"
	"github.com/rustyeddy/bts/strategies"
)

// Config represents a complete backtest or optimizer run
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Fees      FeesConfig      `json:"fees" yaml:"fees"`
	Data      DataConfig      `json:"data" yaml:"data"`
	Strategy  StrategyConfig  `json:"strategy" yaml:"strategy"`
	Optimizer OptimizerConfig `json:"optimizer" yaml:"optimizer"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// AccountConfig contains the wallet funding
type AccountConfig struct {
	Balance float64 `json:"balance" yaml:"balance"`
}

// FeesConfig holds fee rates as fractions of an order's cost.
type FeesConfig struct {
	Enabled bool    `json:"enabled" yaml:"enabled"`
	Market  float64 `json:"market" yaml:"market"`
	Limit   float64 `json:"limit" yaml:"limit"`
}

// DataConfig selects the candle feed: a file when Path is set, otherwise a
// generated random walk.
type DataConfig struct {
	Path     string         `json:"path,omitempty" yaml:"path,omitempty"`
	Generate GenerateConfig `json:"generate" yaml:"generate"`
}

type GenerateConfig struct {
	Count     int     `json:"count" yaml:"count"`
	Seed      int64   `json:"seed" yaml:"seed"`
	BasePrice float64 `json:"base_price" yaml:"base_price"`
	Timeframe string  `json:"timeframe" yaml:"timeframe"` // e.g. "1h", "24h"
}

// StrategyConfig names a registered strategy and its parameters
type StrategyConfig struct {
	Name              string `json:"name" yaml:"name"`
	strategies.Params `yaml:",inline"`
}

// OptimizerConfig describes the parameter grid. Empty axes keep the
// strategy's value.
type OptimizerConfig struct {
	Workers          int       `json:"workers" yaml:"workers"`
	EMAFrom          int       `json:"ema_from,omitempty" yaml:"ema_from,omitempty"`
	EMATo            int       `json:"ema_to,omitempty" yaml:"ema_to,omitempty"`
	EMAStep          int       `json:"ema_step,omitempty" yaml:"ema_step,omitempty"`
	MACDFrom         int       `json:"macd_from,omitempty" yaml:"macd_from,omitempty"`
	MACDTo           int       `json:"macd_to,omitempty" yaml:"macd_to,omitempty"`
	TrailingPercents []float64 `json:"trailing_percents,omitempty" yaml:"trailing_percents,omitempty"`
	Top              int       `json:"top" yaml:"top"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrgFile    string `json:"org_file,omitempty" yaml:"org_file,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// LoadFromFile loads configuration from a file. Missing keys keep their
// Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// .json is read as JSON; anything else tries YAML first, then JSON
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Fees.Enabled {
		if err := c.SimFees().Validate(); err != nil {
			return fmt.Errorf("fees: %w", err)
		}
	}
	if c.Data.Path == "" {
		if c.Data.Generate.Count <= 0 {
			return fmt.Errorf("data.generate.count must be positive when data.path is empty")
		}
		if _, err := c.Data.Generate.timeframe(); err != nil {
			return fmt.Errorf("data.generate.timeframe: %w", err)
		}
	}
	if _, err := strategies.ByName(c.Strategy.Name, c.Strategy.Params); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if c.Optimizer.Workers < 0 {
		return fmt.Errorf("optimizer.workers must be >= 0")
	}
	if c.Optimizer.EMATo < c.Optimizer.EMAFrom {
		return fmt.Errorf("optimizer.ema_to must be >= optimizer.ema_from")
	}
	if c.Optimizer.MACDTo < c.Optimizer.MACDFrom {
		return fmt.Errorf("optimizer.macd_to must be >= optimizer.macd_from")
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

// SimFees returns the engine fee schedule, nil when fees are off.
func (c *Config) SimFees() *sim.Fees {
	if !c.Fees.Enabled {
		return nil
	}
	return &sim.Fees{Market: c.Fees.Market, Limit: c.Fees.Limit}
}

// Candles loads or generates the feed. The set's Source names the file or
// the generator settings.
func (c *Config) Candles() (*market.CandleSet, error) {
	if c.Data.Path != "" {
		candles, err := market.Load(c.Data.Path)
		if err != nil {
			return nil, err
		}
		return market.NewCandleSet(filepath.Base(c.Data.Path), candles)
	}

	g := c.Data.Generate
	tf, err := g.timeframe()
	if err != nil {
		return nil, err
	}
	candles := market.Generate(market.GenerateConfig{
		Count:     g.Count,
		Seed:      g.Seed,
		BasePrice: g.BasePrice,
		Timeframe: tf,
	})
	return market.NewCandleSet(fmt.Sprintf("generated(count=%d,seed=%d)", g.Count, g.Seed), candles)
}

func (g GenerateConfig) timeframe() (time.Duration, error) {
	if g.Timeframe == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(g.Timeframe)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", g.Timeframe)
	}
	return d, nil
}

// Grid expands the optimizer section around the strategy parameters.
func (c *Config) Grid() strategies.Grid {
	g := strategies.Grid{Base: c.Strategy.Params, TrailingPercents: c.Optimizer.TrailingPercents}
	if o := c.Optimizer; o.EMAFrom > 0 {
		g.EMAPeriods = strategies.IntRange(o.EMAFrom, o.EMATo, o.EMAStep)
	}
	if o := c.Optimizer; o.MACDFrom > 0 {
		g.MACD = strategies.MACDTriples(o.MACDFrom, o.MACDTo)
	}
	return g
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{Balance: 1000},
		Fees: FeesConfig{
			Enabled: true,
			Market:  0.001,
			Limit:   0.0005,
		},
		Data: DataConfig{
			Generate: GenerateConfig{
				Count:     2000,
				Seed:      42,
				BasePrice: 100,
				Timeframe: "1h",
			},
		},
		Strategy: StrategyConfig{
			Name:   "ema-macd-trailing",
			Params: strategies.DefaultParams(),
		},
		Optimizer: OptimizerConfig{
			EMAFrom:          50,
			EMATo:            200,
			EMAStep:          50,
			TrailingPercents: []float64{1, 2, 3},
			Top:              10,
		},
		Journal: JournalConfig{Type: "none"},
		Log:     LogConfig{Level: "info"},
	}
}
