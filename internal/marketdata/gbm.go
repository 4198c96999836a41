package marketdata

import (
	"context"
	"math"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/cost"
)

// GBM is a geometric random walk: each step draws a log-return from
// N(Mu, Sigma^2). The first observation is StartPrice.
type GBM struct {
	Steps      int
	StartPrice float64
	Mu         float64
	Sigma      float64
	SpreadBps  float64
	Seed       *int64
}

func (g GBM) Name() string { return "gbm" }

// Validate checks the walk parameters.
func (g GBM) Validate() error {
	if err := checkSteps(g.Steps); err != nil {
		return err
	}
	if err := checkStartPrice(g.StartPrice); err != nil {
		return err
	}
	if g.Sigma < 0 {
		return core.Errorf(core.ErrConfigInvalid, "sigma must be >= 0, got %v", g.Sigma)
	}
	return checkSpread(g.SpreadBps)
}

func (g GBM) Observations(ctx context.Context) ([]core.Observation, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	rng := newRand(g.Seed)
	out := make([]core.Observation, g.Steps)
	mid := g.StartPrice
	for i := range out {
		if i > 0 {
			r := g.Mu + g.Sigma*rng.NormFloat64()
			mid = max(minPrice, mid*math.Exp(r))
		}
		bid, ask := cost.SplitSpread(mid, g.SpreadBps)
		out[i] = core.Observation{Index: i, Bid: bid, Ask: ask, Mid: mid}
	}
	return out, nil
}
