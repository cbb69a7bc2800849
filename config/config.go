// Package config loads and validates the executor configuration: per-symbol
// parameter sets, account limits, strategy multipliers, wait durations, and
// journal settings. Secrets (broker login, SMTP password) come from the
// environment, never the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete executor configuration for one process.
type Config struct {
	Log     LogConfig               `json:"log" yaml:"log"`
	Account AccountConfig           `json:"account" yaml:"account"`
	Trading TradingConfig           `json:"trading" yaml:"trading"`
	Waits   WaitConfig              `json:"waits" yaml:"waits"`
	Journal JournalConfig           `json:"journal" yaml:"journal"`
	Store   StoreConfig             `json:"store" yaml:"store"`
	Params  map[string]ParameterSet `json:"params" yaml:"params"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// AccountConfig holds the risk-governor limits.
type AccountConfig struct {
	BalanceBegin float64 `json:"balance_begin" yaml:"balance_begin"`
	ShrinkLimit  float64 `json:"shrink_limit" yaml:"shrink_limit"`
	MarginLimit  float64 `json:"margin_limit" yaml:"margin_limit"`
}

// TradingConfig holds the multipliers converting average true range into the
// cycle's derived distances, plus gateway settings.
type TradingConfig struct {
	StopMult      float64 `json:"stop_mult" yaml:"stop_mult"`             // stop distance = ATR * StopMult
	CrossMult     float64 `json:"cross_mult" yaml:"cross_mult"`           // hysteresis band = ATR * CrossMult
	TouchMult     float64 `json:"touch_mult" yaml:"touch_mult"`           // break-even trigger = stop * TouchMult
	MoveMult      float64 `json:"move_mult" yaml:"move_mult"`             // break-even move = stop * MoveMult
	SpreadMult    float64 `json:"spread_mult" yaml:"spread_mult"`         // spread limit = stop * SpreadMult
	FailMax       int     `json:"fail_max" yaml:"fail_max"`               // consecutive order failures before cooldown
	ATRBars       int     `json:"atr_bars" yaml:"atr_bars"`               // bars fetched and averaged for ATR
	CommonSpreadT int     `json:"common_spread_ticks" yaml:"common_spread_ticks"` // typical spread, for the startup sanity warning
}

// Duration wraps time.Duration so config files can say "10s" or "5m".
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", value.Value, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("bad duration %s: %w", b, err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// WaitConfig names the four blocking delay classes.
type WaitConfig struct {
	Short  Duration `json:"short" yaml:"short"`
	Middle Duration `json:"middle" yaml:"middle"`
	Long   Duration `json:"long" yaml:"long"`
	Super  Duration `json:"super" yaml:"super"`
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type StoreConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// ParameterSet is the per-symbol tuning, immutable once loaded. Windows are
// bar counts for the three MA pairs; StopAmount is the fixed monetary
// stop-loss per trade.
type ParameterSet struct {
	TimingFast      int     `json:"timing_fast" yaml:"timing_fast"`
	TimingSlow      int     `json:"timing_slow" yaml:"timing_slow"`
	PositioningFast int     `json:"positioning_fast" yaml:"positioning_fast"`
	PositioningSlow int     `json:"positioning_slow" yaml:"positioning_slow"`
	DirectionFast   int     `json:"direction_fast" yaml:"direction_fast"`
	DirectionSlow   int     `json:"direction_slow" yaml:"direction_slow"`
	StopAmount      float64 `json:"stop_amount" yaml:"stop_amount"`
}

func (p ParameterSet) validate() error {
	windows := []struct {
		name string
		v    int
	}{
		{"timing_fast", p.TimingFast},
		{"timing_slow", p.TimingSlow},
		{"positioning_fast", p.PositioningFast},
		{"positioning_slow", p.PositioningSlow},
		{"direction_fast", p.DirectionFast},
		{"direction_slow", p.DirectionSlow},
	}
	for _, w := range windows {
		if w.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", w.name, w.v)
		}
	}
	if p.StopAmount <= 0 {
		return fmt.Errorf("stop_amount must be positive, got %v", p.StopAmount)
	}
	return nil
}

// ParamsFor returns the parameter set for symbol. A symbol with no configured
// set is a fatal configuration error.
func (c *Config) ParamsFor(symbol string) (ParameterSet, error) {
	p, ok := c.Params[symbol]
	if !ok || p == (ParameterSet{}) {
		return ParameterSet{}, fmt.Errorf("no parameter set configured for symbol %q", symbol)
	}
	return p, nil
}

// LoadFromFile loads configuration from a file (YAML or JSON based on
// content), applying defaults for unset sections before validation.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks limits, multipliers and every configured parameter set.
func (c *Config) Validate() error {
	if c.Account.BalanceBegin <= 0 {
		return fmt.Errorf("account.balance_begin must be positive")
	}
	if c.Account.ShrinkLimit <= 0 || c.Account.ShrinkLimit >= 1 {
		return fmt.Errorf("account.shrink_limit must be in (0, 1)")
	}
	if c.Account.MarginLimit <= 0 {
		return fmt.Errorf("account.margin_limit must be positive")
	}
	mults := []struct {
		name string
		v    float64
	}{
		{"stop_mult", c.Trading.StopMult},
		{"cross_mult", c.Trading.CrossMult},
		{"touch_mult", c.Trading.TouchMult},
		{"move_mult", c.Trading.MoveMult},
		{"spread_mult", c.Trading.SpreadMult},
	}
	for _, m := range mults {
		if m.v <= 0 {
			return fmt.Errorf("trading.%s must be positive", m.name)
		}
	}
	if c.Trading.FailMax <= 0 {
		return fmt.Errorf("trading.fail_max must be positive")
	}
	if c.Trading.ATRBars <= 0 {
		return fmt.Errorf("trading.atr_bars must be positive")
	}
	if c.Waits.Short <= 0 || c.Waits.Middle <= 0 || c.Waits.Long <= 0 || c.Waits.Super <= 0 {
		return fmt.Errorf("waits must all be positive durations")
	}
	switch c.Journal.Type {
	case "csv":
		if c.Journal.EventsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal events_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "none":
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir is required")
	}
	for sym, p := range c.Params {
		if p == (ParameterSet{}) {
			continue // empty set caught at ParamsFor, when the symbol is actually traded
		}
		if err := p.validate(); err != nil {
			return fmt.Errorf("params[%s]: %w", sym, err)
		}
	}
	return nil
}

// Default returns a configuration with the stock strategy constants.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Account: AccountConfig{
			BalanceBegin: 100,
			ShrinkLimit:  0.3,
			MarginLimit:  2.0,
		},
		Trading: TradingConfig{
			StopMult:      2,
			CrossMult:     0.1,
			TouchMult:     1,
			MoveMult:      0.1,
			SpreadMult:    0.2,
			FailMax:       20,
			ATRBars:       300,
			CommonSpreadT: 30,
		},
		Waits: WaitConfig{
			Short:  Duration(10 * time.Second),
			Middle: Duration(time.Minute),
			Long:   Duration(10 * time.Minute),
			Super:  Duration(30 * time.Minute),
		},
		Journal: JournalConfig{
			Type:       "csv",
			EventsFile: "./events.csv",
			EquityFile: "./equity.csv",
		},
		Store: StoreConfig{Dir: "./record"},
	}
}
