// Package live holds the live trading session: a multi-symbol portfolio
// marked by exchange ticks, pre-trade risk checks and a metrics feed.
package live

import (
	"github.com/newthinker/novaquant/internal/core"
)

// RiskConfig defines risk management parameters.
type RiskConfig struct {
	// PerTradeNotionalCap is the largest qty*px accepted for one order.
	PerTradeNotionalCap float64 `mapstructure:"per_trade_notional_cap"`
	// MaxSessionDrawdownPct halts trading once the session equity falls this
	// far below its peak.
	MaxSessionDrawdownPct float64 `mapstructure:"max_session_drawdown_pct"`
}

// DefaultRiskConfig returns a RiskConfig with sensible default values.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		PerTradeNotionalCap:   50_000,
		MaxSessionDrawdownPct: 10,
	}
}

// Validate checks the limits are usable.
func (c RiskConfig) Validate() error {
	if c.PerTradeNotionalCap <= 0 {
		return core.Errorf(core.ErrConfigInvalid, "per_trade_notional_cap must be > 0, got %v", c.PerTradeNotionalCap)
	}
	if c.MaxSessionDrawdownPct <= 0 || c.MaxSessionDrawdownPct > 100 {
		return core.Errorf(core.ErrConfigInvalid, "max_session_drawdown_pct must be in (0, 100], got %v", c.MaxSessionDrawdownPct)
	}
	return nil
}

// RiskChecker validates orders against the session limits.
type RiskChecker struct {
	config RiskConfig
}

// NewRiskChecker creates a new RiskChecker with the given configuration.
func NewRiskChecker(config RiskConfig) *RiskChecker {
	return &RiskChecker{config: config}
}

// Config returns the limits in force.
func (r *RiskChecker) Config() RiskConfig {
	return r.config
}

// Check rejects an order whose notional exceeds the cap, then refuses any
// order while trading is halted.
func (r *RiskChecker) Check(o Order, halted bool, drawdownPct float64) error {
	if notional := o.Notional(); notional > r.config.PerTradeNotionalCap {
		return core.Errorf(core.ErrOrderRejected, "notional %.2f exceeds cap %.2f", notional, r.config.PerTradeNotionalCap)
	}
	if halted {
		return core.Errorf(core.ErrTradingHalted, "drawdown %.2f%%", drawdownPct)
	}
	return nil
}

// Breached reports whether drawdownPct reaches the halt threshold.
func (r *RiskChecker) Breached(drawdownPct float64) bool {
	return drawdownPct >= r.config.MaxSessionDrawdownPct
}
