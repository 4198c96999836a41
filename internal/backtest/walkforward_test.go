package backtest

import (
	"context"
	"errors"
	"testing"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkWindows(t *testing.T) {
	assert.Equal(t, []window{{0, 100}, {100, 200}, {200, 250}}, chunkWindows(250, 100))
	assert.Equal(t, []window{{0, 3}}, chunkWindows(3, 100))
	assert.Empty(t, chunkWindows(0, 100))
}

func TestRunner_WalkForward_Boundaries(t *testing.T) {
	rec := newCountingRecorder()
	r := newTestRunner(nil)
	r.SetRecorder(rec)

	resp, err := r.WalkForward(context.Background(), WalkForwardRequest{
		Request:   gbmRequest(1000, 0.01, 21),
		TrainSize: ptrTo(300),
		TestSize:  ptrTo(100),
	})
	require.NoError(t, err)
	require.Len(t, resp.Chunks, 10)
	require.Len(t, resp.ChunkMetrics, 10)
	assert.Equal(t, 10, rec.cells[KindWalkForward])

	for i, c := range resp.Chunks {
		assert.Equal(t, i*100, c.Start)
		assert.Equal(t, (i+1)*100, c.End)
		assert.Len(t, c.Equity, 100)
		assert.Zero(t, c.Lookback)
		assert.Equal(t, c.Start, resp.ChunkMetrics[i].Start)
		assert.Equal(t, c.End, resp.ChunkMetrics[i].End)
		for _, tr := range c.Trades {
			assert.GreaterOrEqual(t, tr.Index, c.Start)
			assert.Less(t, tr.Index, c.End)
		}
	}
}

func TestRunner_WalkForward_PartialLastChunk(t *testing.T) {
	resp, err := newTestRunner(nil).WalkForward(context.Background(), WalkForwardRequest{
		Request:  gbmRequest(1050, 0.01, 2),
		TestSize: ptrTo(100),
	})
	require.NoError(t, err)
	require.Len(t, resp.Chunks, 11)

	last := resp.Chunks[10]
	assert.Equal(t, 1000, last.Start)
	assert.Equal(t, 1050, last.End)
	assert.Len(t, last.Equity, 50)
}

func TestRunner_WalkForward_TrainSizeInert(t *testing.T) {
	r := newTestRunner(nil)
	req := WalkForwardRequest{Request: gbmRequest(500, 0.01, 4), TestSize: ptrTo(100)}

	req.TrainSize = ptrTo(0)
	a, err := r.WalkForward(context.Background(), req)
	require.NoError(t, err)

	req.TrainSize = ptrTo(450)
	b, err := r.WalkForward(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBarWinRate(t *testing.T) {
	assert.Equal(t, -1.0, barWinRate(nil))
	assert.Equal(t, -1.0, barWinRate([]float64{100}))
	assert.Equal(t, 0.0, barWinRate([]float64{100, 100, 99}))
	assert.InDelta(t, 2.0/3, barWinRate([]float64{100, 101, 100, 102}), 1e-12)
}

func TestRunner_WalkForward_Refit(t *testing.T) {
	// Training bars 10 20 19 18 17 16 30, zero costs.
	// Lookback 1 goes long at 20, short from 19, long at 30: bar changes
	// 0 -1 +1 +1 +1 -14, per-bar win rate 3/6, closing trades -1 -11 0.
	// Lookback 5 goes long at 16 and closes at 30: bar changes 0 0 0 0 0 +14,
	// per-bar win rate 1/6, one winning closing trade.
	closes := []float64{10, 20, 19, 18, 17, 16, 30, 31, 32, 33, 34, 35, 36, 37}
	bars := make([]core.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = core.OHLCV{Open: c, High: c, Low: c, Close: c}
	}

	resp, err := newTestRunner(&stubFetcher{bars: bars}).WalkForward(context.Background(), WalkForwardRequest{
		Request: Request{
			DataSource:  SourceYahoo,
			YahooSymbol: "SPY",
			Start:       "2024-01-01",
			End:         "2024-02-01",
			Interval:    "1d",
			FeeBps:      ptrTo(0.0),
			SlippageBps: ptrTo(0.0),
		},
		TrainSize:      ptrTo(7),
		TestSize:       ptrTo(7),
		RefitLookbacks: []int{5, 1},
	})
	require.NoError(t, err)
	require.Len(t, resp.Chunks, 2)

	assert.Equal(t, DefaultLookback, resp.Chunks[0].Lookback, "no training bars before the first chunk")
	assert.Equal(t, 1, resp.Chunks[1].Lookback)
}

func TestRunner_WalkForward_RefitTieKeepsFirstCandidate(t *testing.T) {
	resp, err := newTestRunner(nil).WalkForward(context.Background(), WalkForwardRequest{
		Request:        gbmRequest(200, 0, 8),
		TrainSize:      ptrTo(100),
		TestSize:       ptrTo(100),
		RefitLookbacks: []int{4, 2, 8},
	})
	require.NoError(t, err)
	require.Len(t, resp.Chunks, 2)

	// A flat series never gains on any bar, so every candidate scores 0.
	assert.Equal(t, 4, resp.Chunks[1].Lookback)
}

func TestRunner_WalkForward_Invalid(t *testing.T) {
	base := gbmRequest(100, 0.01, 1)
	tests := []struct {
		name string
		req  WalkForwardRequest
	}{
		{"zero test size", WalkForwardRequest{Request: base, TestSize: ptrTo(0)}},
		{"negative train size", WalkForwardRequest{Request: base, TrainSize: ptrTo(-1)}},
		{"bad refit lookback", WalkForwardRequest{Request: base, RefitLookbacks: []int{0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestRunner(nil).WalkForward(context.Background(), tt.req)
			assert.True(t, errors.Is(err, core.ErrConfigInvalid), "got %v", err)
		})
	}
}
