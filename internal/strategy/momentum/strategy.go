package momentum

import (
	"fmt"

	"github.com/newthinker/novaquant/internal/strategy"
)

// Momentum goes long when the current mid is above the mid lookback bars
// ago, short when below, and flat when equal.
type Momentum struct {
	lookback int
}

// New creates a momentum strategy
func New(lookback int) *Momentum {
	return &Momentum{lookback: lookback}
}

// Factory builds a Momentum from a strategy config.
func Factory(cfg strategy.Config) (strategy.Strategy, error) {
	return New(cfg.Lookback), nil
}

func (m *Momentum) Name() string {
	return "momentum"
}

func (m *Momentum) Description() string {
	return fmt.Sprintf("Momentum (%d)", m.lookback)
}

func (m *Momentum) Warmup() int {
	return m.lookback
}

func (m *Momentum) Signal(mids []float64) strategy.Signal {
	n := len(mids)
	if n <= m.lookback {
		return strategy.Flat
	}

	cur, past := mids[n-1], mids[n-1-m.lookback]
	switch {
	case cur > past:
		return strategy.Long
	case cur < past:
		return strategy.Short
	default:
		return strategy.Flat
	}
}
