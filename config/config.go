package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lzjiangjeff/automated-trader/backtest"
	"github.com/lzjiangjeff/automated-trader/risk"
	"github.com/lzjiangjeff/automated-trader/strategies"
)

// Config is the complete run configuration.
type Config struct {
	Symbol     SymbolConfig      `yaml:"symbol"`
	Data       DataConfig        `yaml:"data"`
	Risk       risk.Limits       `yaml:"risk"`
	Costs      risk.CostModel    `yaml:"costs"`
	Strategies strategies.Config `yaml:"strategies"`
	Journal    JournalConfig     `yaml:"journal"`
	Sweep      backtest.SweepGrid `yaml:"sweep"`
}

// SymbolConfig names the traded symbol and its context symbols (index and
// volatility gauges for the regime filter).
type SymbolConfig struct {
	Primary string   `yaml:"primary"`
	Context []string `yaml:"context"`
}

// DataConfig points at the bar CSVs; plain or xz-compressed.
type DataConfig struct {
	Primary string            `yaml:"primary"`
	Context map[string]string `yaml:"context"`
}

// JournalConfig selects where results are persisted.
type JournalConfig struct {
	Type       string `yaml:"type"` // "csv", "sqlite" or "none"
	TradesFile string `yaml:"trades_file,omitempty"`
	EquityFile string `yaml:"equity_file,omitempty"`
	DBPath     string `yaml:"db_path,omitempty"`
	OrgPath    string `yaml:"org_path,omitempty"`
}

// Load reads a YAML config over the defaults and validates it. Any
// validation error is fatal before a run starts.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate rejects configurations that cannot produce a meaningful run.
func (c *Config) Validate() error {
	if c.Symbol.Primary == "" {
		return fmt.Errorf("symbol.primary is required")
	}
	if c.Data.Primary == "" {
		return fmt.Errorf("data.primary is required")
	}
	for _, sym := range c.Symbol.Context {
		if _, ok := c.Data.Context[sym]; !ok {
			return fmt.Errorf("no data path for context symbol %q", sym)
		}
	}

	r := c.Risk
	if r.InitialCapital <= 0 {
		return fmt.Errorf("risk.initial_capital must be positive")
	}
	if r.PerTradeRiskPct <= 0 || r.PerTradeRiskPct > 100 {
		return fmt.Errorf("risk.per_trade_risk_pct must be in (0, 100]")
	}
	if r.StopATRMult <= 0 {
		return fmt.Errorf("risk.stop_atr_mult must be positive")
	}
	if r.MaxGrossExposure <= 0 {
		return fmt.Errorf("risk.max_gross_exposure must be positive")
	}
	if r.MinNetExposure > r.MaxNetExposure {
		return fmt.Errorf("risk.min_net_exposure exceeds max_net_exposure")
	}
	if r.MaxDrawdownPct <= 0 || r.MaxDrawdownPct >= 100 {
		return fmt.Errorf("risk.max_drawdown_pct must be in (0, 100)")
	}
	if r.DailyLossLimitPct <= 0 {
		return fmt.Errorf("risk.daily_loss_limit_pct must be positive")
	}
	if r.DrawdownRecoveryScale <= 0 || r.DrawdownRecoveryScale > 1 {
		return fmt.Errorf("risk.drawdown_recovery_scale must be in (0, 1]")
	}
	if r.PyramidEnabled && r.PyramidMaxAdds <= 0 {
		return fmt.Errorf("risk.pyramid_max_adds must be positive when pyramiding is enabled")
	}

	if c.Costs.CommissionPerShare < 0 || c.Costs.SlippageBps < 0 || c.Costs.MarketImpactBps < 0 {
		return fmt.Errorf("costs must be non-negative")
	}

	if c.Strategies.Ensemble.Enabled && len(c.Strategies.Ensemble.Weights) == 0 {
		return fmt.Errorf("strategies.ensemble.weights required when the ensemble is enabled")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for csv type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for sqlite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}

	return nil
}

// Default returns a configuration with library defaults: conservative risk
// limits, realistic costs and every strategy disabled.
func Default() *Config {
	return &Config{
		Risk: risk.DefaultLimits(),
		Costs: risk.CostModel{
			CommissionPerShare: 0.005,
			SlippageBps:        5,
			MarketImpactBps:    3,
		},
		Strategies: strategies.Default(),
		Journal:    JournalConfig{Type: "none"},
	}
}
