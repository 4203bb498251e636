// Package config provides configuration management for the simulator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Account  AccountConfig  `mapstructure:"account"`
	Matching MatchingConfig `mapstructure:"matching"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Session  SessionConfig  `mapstructure:"session"`
}

// AccountConfig holds the simulated account parameters.
type AccountConfig struct {
	ID             string  `mapstructure:"id"`
	InitialCapital float64 `mapstructure:"initial_capital"`
}

// MatchingConfig holds the tick-level matcher's cost model.
type MatchingConfig struct {
	SlippageRate   float64 `mapstructure:"slippage_rate"`
	CommissionRate float64 `mapstructure:"commission_rate"`
	StampTaxRate   float64 `mapstructure:"stamp_tax_rate"`
	Seed           int64   `mapstructure:"seed"` // 0 means time-seeded
}

// BacktestConfig holds the bar-driven engine's cost model.
type BacktestConfig struct {
	InitialCapital     float64 `mapstructure:"initial_capital"`
	CommissionRate     float64 `mapstructure:"commission_rate"`
	MinCommission      float64 `mapstructure:"min_commission"`
	SlippageRate       float64 `mapstructure:"slippage_rate"`
	EnableMarketImpact bool    `mapstructure:"enable_market_impact"`
	MarketImpactCoef   float64 `mapstructure:"market_impact_coef"`
}

// StoreConfig holds journal persistence settings.
type StoreConfig struct {
	Path string `mapstructure:"path"` // SQLite database file
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"` // debug, info, warn, error
	File       string `mapstructure:"file"`  // empty means stderr only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
}

// SessionConfig holds trading-calendar settings.
type SessionConfig struct {
	Holidays  []string `mapstructure:"holidays"`  // yyyy-mm-dd
	Suspended []string `mapstructure:"suspended"` // symbols halted from trading
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/apexsim"
	}
	return filepath.Join(home, ".config", "apexsim")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:             "SIM_ACCOUNT",
			InitialCapital: 1_000_000,
		},
		Matching: MatchingConfig{
			SlippageRate:   0.0001,
			CommissionRate: 0.00025,
			StampTaxRate:   0.001,
		},
		Backtest: BacktestConfig{
			InitialCapital: 1_000_000,
			CommissionRate: 0.0003,
			MinCommission:  5.0,
			SlippageRate:   0.001,
		},
		Store: StoreConfig{
			Path: filepath.Join(DefaultConfigDir(), "journal.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Console:    true,
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config file is not an error; a template is written and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("writing config template: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("account.id", cfg.Account.ID)
	v.SetDefault("account.initial_capital", cfg.Account.InitialCapital)
	v.SetDefault("matching.slippage_rate", cfg.Matching.SlippageRate)
	v.SetDefault("matching.commission_rate", cfg.Matching.CommissionRate)
	v.SetDefault("matching.stamp_tax_rate", cfg.Matching.StampTaxRate)
	v.SetDefault("backtest.initial_capital", cfg.Backtest.InitialCapital)
	v.SetDefault("backtest.commission_rate", cfg.Backtest.CommissionRate)
	v.SetDefault("backtest.min_commission", cfg.Backtest.MinCommission)
	v.SetDefault("backtest.slippage_rate", cfg.Backtest.SlippageRate)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAgeDays)
	v.SetDefault("logging.console", cfg.Logging.Console)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APEXSIM_ACCOUNT_ID"); v != "" {
		cfg.Account.ID = v
	}
	if v := os.Getenv("APEXSIM_INITIAL_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Account.InitialCapital = f
		}
	}
	if v := os.Getenv("APEXSIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Matching.Seed = n
		}
	}
	if v := os.Getenv("APEXSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("APEXSIM_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if c.Matching.SlippageRate < 0 || c.Matching.SlippageRate > 0.1 {
		return fmt.Errorf("matching.slippage_rate must be between 0 and 0.1")
	}
	if c.Matching.CommissionRate < 0 || c.Matching.CommissionRate > 0.01 {
		return fmt.Errorf("matching.commission_rate must be between 0 and 0.01")
	}
	if c.Matching.StampTaxRate < 0 || c.Matching.StampTaxRate > 0.01 {
		return fmt.Errorf("matching.stamp_tax_rate must be between 0 and 0.01")
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	return nil
}
