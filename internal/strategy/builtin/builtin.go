// Package builtin registers the strategies shipped with novaquant.
package builtin

import (
	"github.com/newthinker/novaquant/internal/strategy"
	"github.com/newthinker/novaquant/internal/strategy/ma_crossover"
	"github.com/newthinker/novaquant/internal/strategy/momentum"
	"go.uber.org/zap"
)

// NewRegistry returns a registry holding every built-in strategy kind.
func NewRegistry(logger *zap.Logger) *strategy.Registry {
	r := strategy.NewRegistry(logger)
	r.Register("momentum", momentum.Factory)
	r.Register("ma_crossover", ma_crossover.Factory)
	return r
}
