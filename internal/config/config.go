// Package config provides application-wide configuration management.
// All configuration is loaded from files and environment variables.
// No configuration is hardcoded in strategy, risk, or broker logic.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Mode defines whether the engine runs in paper or live trading mode.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// Config holds all engine configuration, loaded once at startup and
// passed as read-only to every component. Field groups follow the
// external CLI surface's recognized option table.
type Config struct {
	TradingMode Mode `json:"trading_mode"`

	// Symbols is the tradable symbol set; SymbolSelector may override at
	// runtime, but this seeds the engine at start.
	Symbols []string `json:"symbols"`

	// Interval is the tick period (C1 Clock & Cadence).
	Interval time.Duration `json:"interval"`

	// Lookback is the bar history requested per tick from MarketDataPort.
	Lookback time.Duration `json:"lookback"`

	StartCash float64 `json:"start_cash"`

	Risk     RiskConfig     `json:"risk"`
	Sizing   SizingConfig   `json:"sizing"`
	Ensemble EnsembleConfig `json:"ensemble"`
	Runtime  RuntimeConfig  `json:"runtime"`
	Broker   BrokerConfig   `json:"broker"`

	IgnoreMarketHours bool `json:"ignore_market_hours"`

	MarketCalendarPath string `json:"market_calendar_path"`
	DatabaseURL        string `json:"database_url"`

	// RegimeSymbol is the reference symbol the RegimeDetector classifies
	// against each tick. Empty means "use the first entry of Symbols",
	// resolved once at startup since Symbols may be reordered by a
	// SymbolSelector.
	RegimeSymbol string `json:"regime_symbol"`
}

// RiskConfig defines hard risk guardrails enforced by the RiskGate.
// These limits cannot be overridden by strategies or the ensemble.
type RiskConfig struct {
	MaxPositions    int     `json:"max_positions"`
	MaxPositionPct  float64 `json:"max_position_pct"`
	MaxDailyLoss    float64 `json:"max_daily_loss"`  // fraction, e.g. 0.02
	MaxDrawdown     float64 `json:"max_drawdown"`    // fraction
	ConfidenceFloor float64 `json:"confidence_floor"` // default 0.3
}

// SizingConfig configures fixed-fractional position sizing and the exit
// ladder consumed by the PositionManager.
type SizingConfig struct {
	RiskPerTrade float64        `json:"risk_per_trade"` // fraction of equity, e.g. 0.01
	StopPct      float64        `json:"stop_pct"`
	TPLadder     []TPLevel      `json:"tp_ladder"`
	TMaxBars     int            `json:"t_max_bars"`     // default 20
	TimeExitRet  float64        `json:"time_exit_ret"`  // default 0.01 (+1%)
	TrailEnabled bool           `json:"trail_enabled"`  // default false
	TrailTrigger float64        `json:"trail_trigger"`  // +X%
	TrailGiveBack float64       `json:"trail_give_back"`
}

// TPLevel is one rung of the multi-level take-profit ladder: fires once
// unrealized return reaches Pct, closing Frac of the remaining position.
type TPLevel struct {
	Pct  float64 `json:"pct"`
	Frac float64 `json:"frac"`
}

// DefaultTPLadder returns the standard take-profit ladder.
func DefaultTPLadder() []TPLevel {
	return []TPLevel{
		{Pct: 0.015, Frac: 0.5},
		{Pct: 0.03, Frac: 0.25},
		{Pct: 0.05, Frac: 0.25},
	}
}

// EnsembleConfig configures the online weight-learning rule.
type EnsembleConfig struct {
	ThetaEnter    float64 `json:"confidence_enter_threshold"`
	Eta0          float64 `json:"eta0"`
	EtaDecayDenom float64 `json:"eta_decay_denom"`
}

// RuntimeConfig configures concurrency and I/O bounds.
type RuntimeConfig struct {
	Workers         int           `json:"workers"`
	StrategyTimeout time.Duration `json:"strategy_timeout"`
	FetchTimeout    time.Duration `json:"fetch_timeout"`
	SnapshotEveryK  int           `json:"snapshot_every_k"`
	ShutdownGrace   time.Duration `json:"shutdown_grace_step"`
}

// BrokerConfig configures the PaperBroker's fill model.
type BrokerConfig struct {
	CommissionBps float64 `json:"commission_bps"`
	SlippageBps   float64 `json:"slippage_bps"`
	MinFee        float64 `json:"min_fee"`
}

// Default returns a Config populated with every standard default, for
// callers that only want to override a handful of keys.
func Default() Config {
	return Config{
		TradingMode: ModePaper,
		Interval:    time.Minute,
		Lookback:    50 * time.Minute,
		StartCash:   100000,
		Risk: RiskConfig{
			MaxPositions:    10,
			MaxPositionPct:  0.10,
			MaxDailyLoss:    0.02,
			MaxDrawdown:     0.05,
			ConfidenceFloor: 0.3,
		},
		Sizing: SizingConfig{
			RiskPerTrade:  0.01,
			StopPct:       0.02,
			TPLadder:      DefaultTPLadder(),
			TMaxBars:      20,
			TimeExitRet:   0.01,
			TrailEnabled:  false,
			TrailTrigger:  0.02,
			TrailGiveBack: 0.005,
		},
		Ensemble: EnsembleConfig{
			ThetaEnter:    0.3,
			Eta0:          0.3,
			EtaDecayDenom: 1000,
		},
		Runtime: RuntimeConfig{
			Workers:         8,
			StrategyTimeout: 5 * time.Second,
			FetchTimeout:    10 * time.Second,
			SnapshotEveryK:  10,
			ShutdownGrace:   30 * time.Second,
		},
		Broker: BrokerConfig{
			CommissionBps: 5,
			SlippageBps:   2,
			MinFee:        1,
		},
	}
}

// Load reads configuration from a JSON file, overlaying it onto Default,
// then applies environment variable overrides for the handful of keys
// that warrant one-off operational overrides without editing the file.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", absPath, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse json: %w", err)
	}

	if v := os.Getenv("ALGO_TRADING_MODE"); v != "" {
		cfg.TradingMode = Mode(v)
	}
	if v := os.Getenv("ALGO_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("ALGO_IGNORE_MARKET_HOURS"); v == "true" {
		cfg.IgnoreMarketHours = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are present and
// sane, rejecting the kind of silently-wrong numbers that would otherwise
// surface as a bad trade hours later.
func (c *Config) Validate() error {
	if c.TradingMode != ModePaper && c.TradingMode != ModeLive {
		return fmt.Errorf("trading_mode must be 'paper' or 'live', got %q", c.TradingMode)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must not be empty")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.StartCash <= 0 {
		return fmt.Errorf("start_cash must be positive, got %f", c.StartCash)
	}
	if c.Risk.MaxPositions <= 0 {
		return fmt.Errorf("risk.max_positions must be positive")
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 1 {
		return fmt.Errorf("risk.max_position_pct must be in (0,1], got %f", c.Risk.MaxPositionPct)
	}
	if c.Risk.MaxDailyLoss <= 0 || c.Risk.MaxDailyLoss > 1 {
		return fmt.Errorf("risk.max_daily_loss must be in (0,1], got %f", c.Risk.MaxDailyLoss)
	}
	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown > 1 {
		return fmt.Errorf("risk.max_drawdown must be in (0,1], got %f", c.Risk.MaxDrawdown)
	}
	if c.Sizing.RiskPerTrade <= 0 || c.Sizing.RiskPerTrade > 1 {
		return fmt.Errorf("sizing.risk_per_trade must be in (0,1], got %f", c.Sizing.RiskPerTrade)
	}
	if c.Runtime.Workers <= 0 {
		return fmt.Errorf("runtime.workers must be positive")
	}

	if c.TradingMode == ModeLive {
		if err := c.validateLiveMode(); err != nil {
			return fmt.Errorf("live mode: %w", err)
		}
	}

	return nil
}

// validateLiveMode enforces extra safety checks when running with real
// money; these are deliberately stricter than the paper-mode minimums.
func (c *Config) validateLiveMode() error {
	if c.Risk.MaxPositions > 5 {
		return fmt.Errorf("risk.max_positions cannot exceed 5 in live mode (got %d)", c.Risk.MaxPositions)
	}
	if c.Sizing.RiskPerTrade > 0.02 {
		return fmt.Errorf("sizing.risk_per_trade cannot exceed 0.02 in live mode (got %f)", c.Sizing.RiskPerTrade)
	}
	if c.Risk.MaxPositionPct > 0.25 {
		return fmt.Errorf("risk.max_position_pct cannot exceed 0.25 in live mode (got %f)", c.Risk.MaxPositionPct)
	}
	return nil
}

// SymbolSelector supplies the tradable symbol set at engine start and on
// explicit reload signals. Implementations must return a stable ordered
// list — order influences sizing tie-breaks under capital scarcity.
type SymbolSelector interface {
	Symbols() []string
}

// ParamStore supplies optional per-strategy parameter overrides, keyed by
// strategy ID, refreshed on the same reload signal as SymbolSelector.
type ParamStore interface {
	Params(strategyID string) map[string]float64
}

// StaticSelector is a SymbolSelector backed by a fixed list, used when no
// dynamic universe selection is configured.
type StaticSelector struct {
	symbols []string
}

// NewStaticSelector builds a StaticSelector over the given symbols.
func NewStaticSelector(symbols []string) StaticSelector {
	return StaticSelector{symbols: symbols}
}

func (s StaticSelector) Symbols() []string { return s.symbols }

// NoopParamStore is a ParamStore with no overrides, used when strategies
// run entirely on their compiled-in defaults.
type NoopParamStore struct{}

func (NoopParamStore) Params(strategyID string) map[string]float64 { return nil }
