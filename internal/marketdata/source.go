// Package marketdata produces the observation sequences backtests run over.
package marketdata

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/cost"
)

// minPrice keeps synthetic walks strictly positive.
const minPrice = 1e-9

// Source produces a finite, restartable observation sequence: calling
// Observations twice on the same value yields identical output whenever the
// source is seeded.
type Source interface {
	Name() string
	Observations(ctx context.Context) ([]core.Observation, error)
}

// Fetcher loads historical bars from an upstream provider.
type Fetcher interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error)
}

// newRand returns a PCG generator for seed, or a randomly seeded one when
// seed is nil.
func newRand(seed *int64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := uint64(*seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

func checkSteps(steps int) error {
	if steps <= 0 {
		return core.Errorf(core.ErrConfigInvalid, "steps must be > 0, got %d", steps)
	}
	return nil
}

func checkStartPrice(px float64) error {
	if px <= 0 {
		return core.Errorf(core.ErrConfigInvalid, "start_price must be > 0, got %v", px)
	}
	return nil
}

func checkSpread(bps float64) error {
	return cost.Config{SpreadBps: bps}.Validate()
}
