package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/newthinker/novaquant/internal/backtest"
	"github.com/newthinker/novaquant/internal/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFlags_OnlySetFieldsAreCopied(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	f := &requestFlags{}
	f.register(cmd)

	require.NoError(t, cmd.ParseFlags([]string{
		"--data-source", "gbm",
		"--steps", "50",
		"--sigma", "0.01",
		"--mu", "0",
		"--seed", "9",
		"--param", "fast_period=3",
	}))

	req := f.request(cmd)
	assert.Equal(t, "gbm", req.DataSource)
	require.NotNil(t, req.Steps)
	assert.Equal(t, 50, *req.Steps)
	require.NotNil(t, req.Mu)
	assert.Equal(t, 0.0, *req.Mu)
	require.NotNil(t, req.Seed)
	assert.Equal(t, int64(9), *req.Seed)
	assert.Equal(t, 3.0, req.StrategyParams["fast_period"])

	assert.Nil(t, req.StartPrice)
	assert.Nil(t, req.Lookback)
	assert.Nil(t, req.FeeBps)
}

func TestReadRequest_RejectsUnknownFields(t *testing.T) {
	path := t.TempDir() + "/req.json"
	require.NoError(t, os.WriteFile(path, []byte(`{"data_source":"gbm","bogus":1}`), 0o600))

	var req backtest.Request
	err := readRequest(path, &req)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestPrintSweep(t *testing.T) {
	score := 1.5
	resp := &backtest.SweepResponse{Top: []backtest.SweepRow{
		{Params: map[string]float64{"lookback": 10, "fee_bps": 1, "slippage_bps": 2}, Score: &score, Trades: 4},
		{Params: map[string]float64{"lookback": 5, "fee_bps": 0, "slippage_bps": 0}},
	}}

	var buf bytes.Buffer
	printSweep(&buf, resp)

	out := buf.String()
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "1.5000")
	assert.Contains(t, out, "n/a")
}

func TestPrintWalkForward(t *testing.T) {
	resp := &backtest.WalkForwardResponse{
		Chunks:       []backtest.Chunk{{Start: 0, End: 100, Lookback: 20}},
		ChunkMetrics: []backtest.ChunkMetrics{{Start: 0, End: 100}},
	}

	var buf bytes.Buffer
	printWalkForward(&buf, resp)
	assert.Contains(t, buf.String(), "[0,100)")
	assert.Contains(t, buf.String(), "20")
}
