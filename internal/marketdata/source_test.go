package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(v int64) *int64 { return &v }

func TestGBM_Deterministic(t *testing.T) {
	g := GBM{Steps: 200, StartPrice: 100, Mu: 0.0001, Sigma: 0.02, SpreadBps: 5, Seed: seed(42)}

	a, err := g.Observations(context.Background())
	require.NoError(t, err)
	b, err := g.Observations(context.Background())
	require.NoError(t, err)

	require.Len(t, a, 200)
	assert.Equal(t, a, b)
	assert.Equal(t, 100.0, a[0].Mid)

	other, err := GBM{Steps: 200, StartPrice: 100, Mu: 0.0001, Sigma: 0.02, SpreadBps: 5, Seed: seed(43)}.Observations(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestGBM_ZeroVolatilityIsConstant(t *testing.T) {
	obs, err := GBM{Steps: 100, StartPrice: 100, Seed: seed(1)}.Observations(context.Background())
	require.NoError(t, err)

	for i, o := range obs {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, 100.0, o.Mid)
		assert.Equal(t, 100.0, o.Bid)
		assert.Equal(t, 100.0, o.Ask)
	}
}

func TestGBM_SpreadAroundMid(t *testing.T) {
	obs, err := GBM{Steps: 10, StartPrice: 50, Sigma: 0.01, SpreadBps: 20, Seed: seed(7)}.Observations(context.Background())
	require.NoError(t, err)

	for _, o := range obs {
		assert.Greater(t, o.Mid, 0.0)
		assert.InDelta(t, o.Mid*0.002, o.Ask-o.Bid, 1e-9)
		assert.InDelta(t, o.Mid, (o.Ask+o.Bid)/2, 1e-9)
	}
}

func TestGBM_Validate(t *testing.T) {
	for _, g := range []GBM{
		{Steps: 0, StartPrice: 1},
		{Steps: 10, StartPrice: 0},
		{Steps: 10, StartPrice: 1, Sigma: -1},
		{Steps: 10, StartPrice: 1, SpreadBps: -1},
	} {
		_, err := g.Observations(context.Background())
		assert.True(t, errors.Is(err, core.ErrConfigInvalid), "%+v: %v", g, err)
	}
}

func TestOrderBook_Deterministic(t *testing.T) {
	o := OrderBook{Steps: 300, StartPrice: 30000, VolBps: 10, SpreadBps: 5, Seed: seed(9)}

	a, err := o.Observations(context.Background())
	require.NoError(t, err)
	b, err := o.Observations(context.Background())
	require.NoError(t, err)

	require.Len(t, a, 300)
	assert.Equal(t, a, b)
	assert.NotEqual(t, 30000.0, a[0].Mid, "the first observation is already shocked")
	for _, q := range a {
		assert.Less(t, q.Bid, q.Ask)
	}
}

func TestOrderBook_ZeroVolatility(t *testing.T) {
	obs, err := OrderBook{Steps: 5, StartPrice: 10, Seed: seed(1)}.Observations(context.Background())
	require.NoError(t, err)
	for _, o := range obs {
		assert.Equal(t, 10.0, o.Mid)
	}
}

func TestOrderBook_Validate(t *testing.T) {
	_, err := OrderBook{Steps: 10, StartPrice: 1, VolBps: -1}.Observations(context.Background())
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

type fakeFetcher struct {
	bars  []core.OHLCV
	err   error
	calls int
}

func (f *fakeFetcher) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	f.calls++
	return f.bars, f.err
}

func TestHistorical_Observations(t *testing.T) {
	f := &fakeFetcher{bars: []core.OHLCV{{Close: 10}, {Close: 11}, {Close: 9}}}
	h := Historical{
		Fetcher:  f,
		Symbol:   "SPY",
		Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Interval: "1d",
	}

	obs, err := h.Observations(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, core.Observation{Index: 1, Bid: 11, Ask: 11, Mid: 11}, obs[1])

	h.SpreadBps = 100
	obs, err = h.Observations(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 8.955, obs[2].Bid, 1e-12)
	assert.InDelta(t, 9.045, obs[2].Ask, 1e-12)
}

func TestHistorical_Errors(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := Historical{Fetcher: &fakeFetcher{}, Symbol: "SPY", Start: start, End: start}.Observations(context.Background())
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = Historical{Symbol: "SPY", Start: start, End: start.Add(time.Hour)}.Observations(context.Background())
	assert.True(t, errors.Is(err, core.ErrDataSource))

	f := &fakeFetcher{err: core.Errorf(core.ErrDataSource, "boom")}
	_, err = Historical{Fetcher: f, Symbol: "SPY", Start: start, End: start.Add(time.Hour)}.Observations(context.Background())
	assert.True(t, errors.Is(err, core.ErrDataSource))
}
