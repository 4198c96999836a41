package marketdata

import (
	"context"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/cost"
)

// OrderBook is a mid-price random walk whose per-step relative shock is
// N(0, (VolBps/10000)^2), with bid/ask synthesized from SpreadBps. Every
// observation, including the first, follows a shock from StartPrice.
type OrderBook struct {
	Steps      int
	StartPrice float64
	VolBps     float64
	SpreadBps  float64
	Seed       *int64
}

func (o OrderBook) Name() string { return "orderbook" }

// Validate checks the walk parameters.
func (o OrderBook) Validate() error {
	if err := checkSteps(o.Steps); err != nil {
		return err
	}
	if err := checkStartPrice(o.StartPrice); err != nil {
		return err
	}
	if o.VolBps < 0 {
		return core.Errorf(core.ErrConfigInvalid, "vol_bps must be >= 0, got %v", o.VolBps)
	}
	return checkSpread(o.SpreadBps)
}

func (o OrderBook) Observations(ctx context.Context) ([]core.Observation, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	rng := newRand(o.Seed)
	vol := o.VolBps / 10_000
	out := make([]core.Observation, o.Steps)
	mid := o.StartPrice
	for i := range out {
		mid = max(minPrice, mid*(1+vol*rng.NormFloat64()))
		bid, ask := cost.SplitSpread(mid, o.SpreadBps)
		out[i] = core.Observation{Index: i, Bid: bid, Ask: ask, Mid: mid}
	}
	return out, nil
}
