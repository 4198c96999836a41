package ma_crossover

import (
	"fmt"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/indicator"
	"github.com/newthinker/novaquant/internal/strategy"
)

// MACrossover holds long while the fast SMA is above the slow SMA and short
// while it is below. The slow period is the configured lookback.
type MACrossover struct {
	fastPeriod int
	slowPeriod int
}

// New creates a new MA Crossover strategy
func New(fastPeriod, slowPeriod int) *MACrossover {
	return &MACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

// Factory reads fast_period from params, defaulting to a quarter of the
// lookback.
func Factory(cfg strategy.Config) (strategy.Strategy, error) {
	fast, ok := cfg.IntParam("fast_period")
	if !ok {
		fast = max(1, cfg.Lookback/4)
	}
	if fast <= 0 || fast >= cfg.Lookback {
		return nil, core.Errorf(core.ErrConfigInvalid,
			"fast_period must be in [1, lookback), got %d with lookback %d", fast, cfg.Lookback)
	}
	return New(fast, cfg.Lookback), nil
}

func (m *MACrossover) Name() string {
	return "ma_crossover"
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%d/%d)", m.fastPeriod, m.slowPeriod)
}

// Warmup matches momentum so both trade from the same bar for a given lookback.
func (m *MACrossover) Warmup() int {
	return m.slowPeriod
}

func (m *MACrossover) Signal(mids []float64) strategy.Signal {
	fast, ok := indicator.LastSMA(mids, m.fastPeriod)
	if !ok {
		return strategy.Flat
	}
	slow, ok := indicator.LastSMA(mids, m.slowPeriod)
	if !ok {
		return strategy.Flat
	}

	switch {
	case fast > slow:
		return strategy.Long
	case fast < slow:
		return strategy.Short
	default:
		return strategy.Flat
	}
}
