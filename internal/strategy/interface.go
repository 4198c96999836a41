package strategy

import (
	"github.com/newthinker/novaquant/internal/core"
)

// Signal is the desired position direction.
type Signal int

const (
	Short Signal = -1
	Flat  Signal = 0
	Long  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Target converts the signal into a signed position of size qty.
func (s Signal) Target(qty float64) float64 {
	return float64(s) * qty
}

// Config holds strategy configuration
type Config struct {
	Kind      string
	Lookback  int
	TargetQty float64
	Params    map[string]any
}

// Validate checks the fields shared by every strategy kind.
func (c Config) Validate() error {
	if c.Lookback <= 0 {
		return core.Errorf(core.ErrConfigInvalid, "lookback must be > 0, got %d", c.Lookback)
	}
	if c.TargetQty <= 0 {
		return core.Errorf(core.ErrConfigInvalid, "qty must be > 0, got %v", c.TargetQty)
	}
	return nil
}

// IntParam reads an integer parameter, accepting the float64 values that
// JSON decoding produces.
func (c Config) IntParam(key string) (int, bool) {
	switch v := c.Params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// Strategy defines the interface for trading strategies. Signal receives the
// mid prices observed so far, oldest first, and is only called once more than
// Warmup prices are available.
type Strategy interface {
	Name() string
	Description() string
	Warmup() int
	Signal(mids []float64) Signal
}

// Factory builds a strategy from a validated config.
type Factory func(cfg Config) (Strategy, error)
