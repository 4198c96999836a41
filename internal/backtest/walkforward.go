package backtest

import (
	"context"
	"time"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/performance"
	"go.uber.org/zap"
)

// Chunk is one out-of-sample window. Trade indices are global observation
// indices. Lookback is set only when refitting.
type Chunk struct {
	Start    int          `json:"start"`
	End      int          `json:"end"`
	Equity   []float64    `json:"equity"`
	Trades   []core.Trade `json:"trades"`
	Lookback int          `json:"lookback,omitempty"`
}

// ChunkMetrics are the metrics of the chunk covering [Start, End).
type ChunkMetrics struct {
	Start   int                 `json:"start"`
	End     int                 `json:"end"`
	Metrics performance.Metrics `json:"metrics"`
}

// WalkForwardResponse holds the chunks in timeline order.
type WalkForwardResponse struct {
	Chunks       []Chunk        `json:"chunks"`
	ChunkMetrics []ChunkMetrics `json:"chunk_metrics"`
}

// window is a half-open range of observation indices.
type window struct {
	start, end int
}

// chunkWindows splits [0, n) into consecutive windows of size; the last one
// holds the remainder.
func chunkWindows(n, size int) []window {
	var out []window
	for start := 0; start < n; start += size {
		out = append(out, window{start: start, end: min(start+size, n)})
	}
	return out
}

func (req WalkForwardRequest) sizes() (train, test int, err error) {
	train = deref(req.TrainSize, DefaultTrainSize)
	test = deref(req.TestSize, DefaultTestSize)
	if train < 0 {
		return 0, 0, core.Errorf(core.ErrConfigInvalid, "train_size must be >= 0, got %d", train)
	}
	if test <= 0 {
		return 0, 0, core.Errorf(core.ErrConfigInvalid, "test_size must be > 0, got %d", test)
	}
	for _, lb := range req.RefitLookbacks {
		if lb <= 0 {
			return 0, 0, core.Errorf(core.ErrConfigInvalid, "refit_lookbacks must be > 0, got %d", lb)
		}
	}
	return train, test, nil
}

// WalkForward runs an independent backtest on every test_size window of the
// series. Without refit_lookbacks, train_size does not influence the result.
// With them, each window uses the candidate lookback that had the best
// per-bar win rate over the train_size bars preceding it.
func (r *Runner) WalkForward(ctx context.Context, req WalkForwardRequest) (resp *WalkForwardResponse, err error) {
	started := time.Now()
	defer func() { r.recorder.ObserveRun(KindWalkForward, time.Since(started), err) }()

	train, test, err := req.sizes()
	if err != nil {
		return nil, err
	}
	p, obs, err := r.prepare(ctx, req.Request)
	if err != nil {
		return nil, err
	}

	refit := train > 0 && len(req.RefitLookbacks) > 0
	windows := chunkWindows(len(obs), test)

	type chunkResult struct {
		chunk   Chunk
		metrics performance.Metrics
	}

	results, err := runIndexed(ctx, r.opts.Workers, len(windows), func(ctx context.Context, i int) (chunkResult, error) {
		w := windows[i]
		lookback := p.strategy.Lookback
		if refit {
			lb, err := r.refitLookback(ctx, p, obs[max(0, w.start-train):w.start], req.RefitLookbacks)
			if err != nil {
				return chunkResult{}, err
			}
			lookback = lb
		}

		res, err := r.simulate(ctx, p, p.withLookback(lookback), p.cost, obs[w.start:w.end])
		if err != nil {
			return chunkResult{}, err
		}
		r.recorder.AddCells(KindWalkForward, 1)

		c := Chunk{Start: w.start, End: w.end, Equity: res.Equity, Trades: res.Trades}
		if refit {
			c.Lookback = lookback
		}
		return chunkResult{chunk: c, metrics: res.Metrics}, nil
	})
	if err != nil {
		r.logger.Warn("walk-forward aborted", zap.Int("chunks", len(windows)), zap.Error(err))
		return nil, err
	}

	resp = &WalkForwardResponse{
		Chunks:       make([]Chunk, len(results)),
		ChunkMetrics: make([]ChunkMetrics, len(results)),
	}
	for i, cr := range results {
		resp.Chunks[i] = cr.chunk
		resp.ChunkMetrics[i] = ChunkMetrics{Start: cr.chunk.Start, End: cr.chunk.End, Metrics: cr.metrics}
	}

	r.logger.Info("walk-forward completed",
		zap.Int("bars", len(obs)),
		zap.Int("chunks", len(results)),
		zap.Int("train_size", train),
		zap.Int("test_size", test),
		zap.Bool("refit", refit),
		zap.Duration("elapsed", time.Since(started)),
	)
	return resp, nil
}

// refitLookback picks the candidate with the highest per-bar win rate over
// the training bars. Ties keep the earlier candidate; with no training bars the
// configured lookback is kept.
func (r *Runner) refitLookback(ctx context.Context, p plan, trainObs []core.Observation, candidates []int) (int, error) {
	best := p.strategy.Lookback
	if len(trainObs) == 0 {
		return best, nil
	}

	bestScore := -1.0
	for _, lb := range candidates {
		res, err := r.simulate(ctx, p, p.withLookback(lb), p.cost, trainObs)
		if err != nil {
			return 0, err
		}
		if score := barWinRate(res.Equity); score > bestScore {
			best, bestScore = lb, score
		}
	}
	return best, nil
}

// barWinRate is the share of bar-to-bar equity changes that are gains, or -1
// when the curve has fewer than two points.
func barWinRate(equity []float64) float64 {
	diffs := performance.Diffs(equity)
	if len(diffs) == 0 {
		return -1
	}
	wins := 0
	for _, d := range diffs {
		if d > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(diffs))
}
