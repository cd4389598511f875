// Package config loads simulation configuration from YAML or JSON files
// with environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/accountsim/cost"
)

// Config is the complete account-simulation configuration.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Cost    CostConfig    `json:"cost" yaml:"cost"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
}

// AccountConfig seeds the ledger.
type AccountConfig struct {
	Name        string  `json:"name" yaml:"name" envconfig:"ACCT_NAME"`
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash" envconfig:"ACCT_INITIAL_CASH"`
	Precision   int     `json:"precision" yaml:"precision" envconfig:"ACCT_PRECISION"`
	Reinvest    bool    `json:"reinvest" yaml:"reinvest" envconfig:"ACCT_REINVEST"`
	BorrowCash  bool    `json:"borrow_cash" yaml:"borrow_cash" envconfig:"ACCT_BORROW_CASH"`
}

// CostConfig selects the transaction-cost model.
type CostConfig struct {
	Model          string  `json:"model" yaml:"model" envconfig:"ACCT_COST_MODEL"` // "zero" or "fixed_a"
	CommissionRate float64 `json:"commission_rate,omitempty" yaml:"commission_rate,omitempty"`
	MinCommission  float64 `json:"min_commission,omitempty" yaml:"min_commission,omitempty"`
	StampTaxRate   float64 `json:"stamp_tax_rate,omitempty" yaml:"stamp_tax_rate,omitempty"`
}

// JournalConfig controls persistence and export.
type JournalConfig struct {
	DBPath    string `json:"db_path,omitempty" yaml:"db_path,omitempty" envconfig:"ACCT_DB_PATH"`
	ExportDir string `json:"export_dir,omitempty" yaml:"export_dir,omitempty" envconfig:"ACCT_EXPORT_DIR"`
}

// LoadFromFile loads configuration from a file (YAML or JSON based on
// content), applies environment overrides, then validates.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration to path, as YAML for .yaml/.yml and
// JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Account.Name == "" {
		return fmt.Errorf("account.name is required")
	}
	if c.Account.InitialCash <= 0 {
		return fmt.Errorf("account.initial_cash must be positive")
	}
	if c.Account.Precision < 0 || c.Account.Precision > 8 {
		return fmt.Errorf("account.precision must be in [0, 8]")
	}
	switch c.Cost.Model {
	case "zero", "fixed_a":
	default:
		return fmt.Errorf("cost.model must be 'zero' or 'fixed_a'")
	}
	return nil
}

// Build constructs the configured cost model.
func (c CostConfig) Build() cost.Model {
	if c.Model == "zero" {
		return cost.NewZero()
	}
	m := cost.NewFixedA()
	if c.CommissionRate > 0 {
		m.CommissionRate = c.CommissionRate
	}
	if c.MinCommission > 0 {
		m.MinCommission = c.MinCommission
	}
	if c.StampTaxRate > 0 {
		m.StampTaxRate = c.StampTaxRate
	}
	return m
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Name:        "SIM-001",
			InitialCash: 100000,
			Precision:   2,
		},
		Cost: CostConfig{
			Model: "fixed_a",
		},
		Journal: JournalConfig{
			DBPath:    "./account.sqlite",
			ExportDir: "./export",
		},
	}
}
