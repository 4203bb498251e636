package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Apexsim Configuration

[account]
# Account identifier used in logs and the journal
id = "SIM_ACCOUNT"
# Starting cash in CNY
initial_capital = 1000000.0

[matching]
# Uniform slippage half-width applied to tick-level fills
slippage_rate = 0.0001
# Commission rate (minimum 5 CNY per fill applies)
commission_rate = 0.00025
# Stamp tax rate, charged on sells only
stamp_tax_rate = 0.001
# Random seed for slippage draws; 0 seeds from the clock
seed = 0

[backtest]
initial_capital = 1000000.0
commission_rate = 0.0003
min_commission = 5.0
slippage_rate = 0.001
enable_market_impact = false
market_impact_coef = 0.0

[store]
# SQLite journal file; empty disables persistence
path = ""

[logging]
# debug, info, warn, error
level = "info"
# Log file path; empty logs to stderr only
file = ""
max_size_mb = 10
max_backups = 5
max_age_days = 30
console = true

[session]
# Extra non-trading days beyond weekends, yyyy-mm-dd
holidays = []
# Symbols halted from trading, e.g. ["600519"]
suspended = []
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
