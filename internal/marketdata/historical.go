package marketdata

import (
	"context"
	"time"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/cost"
)

// Historical replays fetched bars, using each close as the mid. Bid and ask
// equal the close unless SpreadBps widens them.
type Historical struct {
	Fetcher   Fetcher
	Symbol    string
	Start     time.Time
	End       time.Time
	Interval  string
	SpreadBps float64
}

func (h Historical) Name() string { return "yahoo" }

// Validate checks the request range.
func (h Historical) Validate() error {
	if h.Symbol == "" {
		return core.Errorf(core.ErrConfigInvalid, "yahoo_symbol is required")
	}
	if !h.End.After(h.Start) {
		return core.Errorf(core.ErrConfigInvalid, "end must be after start")
	}
	if h.Fetcher == nil {
		return core.Errorf(core.ErrDataSource, "no historical data provider configured")
	}
	return checkSpread(h.SpreadBps)
}

func (h Historical) Observations(ctx context.Context) ([]core.Observation, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	bars, err := h.Fetcher.FetchHistory(ctx, h.Symbol, h.Start, h.End, h.Interval)
	if err != nil {
		return nil, err
	}
	return FromBars(bars, h.SpreadBps), nil
}

// FromBars converts bars to observations, indexed from zero.
func FromBars(bars []core.OHLCV, spreadBps float64) []core.Observation {
	out := make([]core.Observation, len(bars))
	for i, b := range bars {
		bid, ask := cost.SplitSpread(b.Close, spreadBps)
		out[i] = core.Observation{Index: i, Bid: bid, Ask: ask, Mid: b.Close}
	}
	return out
}
