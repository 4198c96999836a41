package backtest

import (
	"context"
	"errors"
	"testing"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/cost"
	"github.com/newthinker/novaquant/internal/marketdata"
	"github.com/newthinker/novaquant/internal/strategy/momentum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func observations(mids ...float64) []core.Observation {
	out := make([]core.Observation, len(mids))
	for i, m := range mids {
		out[i] = core.Observation{Index: i, Bid: m, Ask: m, Mid: m}
	}
	return out
}

func momentumSim(lookback int, c cost.Config) Simulation {
	return Simulation{
		Symbol:       "BTCUSDT",
		Strategy:     momentum.New(lookback),
		Cost:         cost.New(c),
		TargetQty:    1,
		StartingCash: 10_000,
	}
}

func int64p(v int64) *int64 { return &v }

func TestSimulate_HandWorkedSeries(t *testing.T) {
	res, err := Simulate(context.Background(), momentumSim(1, cost.Config{}), observations(100, 101, 102, 101, 100))
	require.NoError(t, err)

	assert.Equal(t, []float64{10_000, 10_000, 10_001, 10_000, 10_001}, res.Equity)
	require.Len(t, res.Trades, 3)

	buy, reverse, flatten := res.Trades[0], res.Trades[1], res.Trades[2]
	assert.Equal(t, core.SideBuy, buy.Side)
	assert.Equal(t, 1, buy.Index)
	assert.Nil(t, buy.RealizedPnL)

	assert.Equal(t, core.SideSell, reverse.Side)
	assert.Equal(t, 2.0, reverse.Qty)
	require.NotNil(t, reverse.RealizedPnL)
	assert.InDelta(t, 0, *reverse.RealizedPnL, 1e-12)

	assert.True(t, flatten.Forced)
	assert.Equal(t, 4, flatten.Index)
	require.NotNil(t, flatten.RealizedPnL)
	assert.InDelta(t, 1, *flatten.RealizedPnL, 1e-12)

	assert.Equal(t, 0.0, res.Final.PositionQty)
	assert.Equal(t, 10_001.0, res.FinalEquity)
	assert.Equal(t, 3, res.Metrics.Trades)
	require.NotNil(t, res.Metrics.WinRate)
	assert.InDelta(t, 0.5, *res.Metrics.WinRate, 1e-12)
}

func TestSimulate_FillsThroughCostModel(t *testing.T) {
	obs := []core.Observation{
		{Index: 0, Bid: 99, Ask: 101, Mid: 100},
		{Index: 1, Bid: 109, Ask: 111, Mid: 110},
		{Index: 2, Bid: 114, Ask: 116, Mid: 115},
	}
	res, err := Simulate(context.Background(), momentumSim(1, cost.Config{FeeBps: 10, SlippageBps: 100}), obs)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	entry := res.Trades[0]
	assert.InDelta(t, 111*1.01, entry.Px, 1e-9)
	assert.InDelta(t, 111*1.01*0.001, entry.Fee, 1e-9)
	assert.Equal(t, 110.0, entry.Mid)

	exit := res.Trades[1]
	assert.True(t, exit.Forced)
	assert.InDelta(t, 114*0.99, exit.Px, 1e-9)

	realized := *exit.RealizedPnL
	assert.InDelta(t, res.FinalEquity-10_000, realized, 1e-9)
	assert.InDelta(t, 114*0.99-111*1.01-111*1.01*0.001-114*0.99*0.001, realized, 1e-9)
}

func TestSimulate_ConstantSeriesNeverTrades(t *testing.T) {
	obs, err := marketdata.GBM{Steps: 100, StartPrice: 100, Mu: 0, Sigma: 0, SpreadBps: 5, Seed: int64p(1)}.Observations(context.Background())
	require.NoError(t, err)

	res, err := Simulate(context.Background(), momentumSim(10, cost.Config{FeeBps: 1, SlippageBps: 2}), obs)
	require.NoError(t, err)

	assert.Len(t, res.Equity, 100)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.Metrics.Trades)
	assert.Nil(t, res.Metrics.Sharpe)
	assert.Nil(t, res.Metrics.ProfitFactor)
	assert.Nil(t, res.Metrics.WinRate)
	for _, e := range res.Equity {
		assert.Equal(t, 10_000.0, e)
	}
}

func TestSimulate_LookbackCoversEveryBar(t *testing.T) {
	res, err := Simulate(context.Background(), momentumSim(5, cost.Config{}), observations(1, 2, 3, 4, 5))
	require.NoError(t, err)

	assert.False(t, res.Traded)
	assert.Empty(t, res.Trades)
	assert.Len(t, res.Equity, 5)
	assert.Nil(t, res.Metrics.MaxDrawdownPct)
	assert.Nil(t, res.Metrics.Sharpe)
	assert.Equal(t, 0, res.Metrics.Trades)
}

func TestSimulate_NoObservations(t *testing.T) {
	_, err := Simulate(context.Background(), momentumSim(1, cost.Config{}), nil)
	assert.True(t, errors.Is(err, core.ErrInsufficientData))
}

func TestSimulate_Invariants(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 4, 5} {
		obs, err := marketdata.OrderBook{Steps: 400, StartPrice: 30_000, VolBps: 25, SpreadBps: 5, Seed: int64p(seed)}.Observations(context.Background())
		require.NoError(t, err)

		res, err := Simulate(context.Background(), momentumSim(7, cost.Config{FeeBps: 1, SlippageBps: 2}), obs)
		require.NoError(t, err)

		assert.Len(t, res.Equity, len(obs))
		assert.Equal(t, 10_000.0, res.Equity[0])
		assert.Equal(t, 0.0, res.Final.PositionQty, "runs always end flat")
		assert.InDelta(t, res.FinalEquity, res.Final.Cash, 1e-6)

		var realized float64
		for _, tr := range res.Trades {
			assert.Greater(t, tr.Qty, 0.0)
			assert.Greater(t, tr.Px, 0.0)
			assert.GreaterOrEqual(t, tr.Fee, 0.0)
			if tr.RealizedPnL != nil {
				realized += *tr.RealizedPnL
			}
		}
		assert.InDelta(t, res.FinalEquity-10_000, realized, 1e-6)
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	src := marketdata.GBM{Steps: 500, StartPrice: 100, Mu: 0, Sigma: 0.01, SpreadBps: 5, Seed: int64p(11)}

	run := func() *Result {
		obs, err := src.Observations(context.Background())
		require.NoError(t, err)
		res, err := Simulate(context.Background(), momentumSim(10, cost.Config{FeeBps: 1, SlippageBps: 2}), obs)
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()
	assert.Equal(t, a.Equity, b.Equity)
	assert.Equal(t, a.Trades, b.Trades)
}

func TestSimulate_Canceled(t *testing.T) {
	obs, err := marketdata.GBM{Steps: 10_000, StartPrice: 100, Sigma: 0.01, Seed: int64p(1)}.Observations(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Simulate(ctx, momentumSim(3, cost.Config{}), obs)
	assert.True(t, errors.Is(err, core.ErrCanceled))
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "WARMUP", PhaseWarmup.String())
	assert.Equal(t, "TRADING", PhaseTrading.String())
	assert.Equal(t, "DONE", PhaseDone.String())
}
