package backtest

import (
	"context"
	"sort"
	"time"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/cost"
	"github.com/newthinker/novaquant/internal/performance"
	"go.uber.org/zap"
)

// Sweep parameter names used in SweepRow.Params.
const (
	ParamLookback    = "lookback"
	ParamFeeBps      = "fee_bps"
	ParamSlippageBps = "slippage_bps"
)

// SweepRow is one scored grid cell.
type SweepRow struct {
	Params      map[string]float64  `json:"params"`
	Score       *float64            `json:"score"`
	Metrics     performance.Metrics `json:"metrics"`
	Trades      int                 `json:"trades"`
	FinalEquity *float64            `json:"final_equity"`
}

// SweepResponse holds the ranked rows.
type SweepResponse struct {
	Top []SweepRow `json:"top"`
}

type sweepCell struct {
	lookback    int
	feeBps      float64
	slippageBps float64
}

// grid enumerates lookback outer, fee middle, slippage inner.
func grid(lookbacks []int, fees, slippages []float64) []sweepCell {
	cells := make([]sweepCell, 0, len(lookbacks)*len(fees)*len(slippages))
	for _, lb := range lookbacks {
		for _, fee := range fees {
			for _, slip := range slippages {
				cells = append(cells, sweepCell{lookback: lb, feeBps: fee, slippageBps: slip})
			}
		}
	}
	return cells
}

type sweepPlan struct {
	cells    []sweepCell
	topK     int
	scoreKey string
}

// plan applies grid defaults and validates the sweep parameters.
func (req SweepRequest) plan() (sweepPlan, error) {
	lookbacks := req.Lookbacks
	if lookbacks == nil {
		lookbacks = DefaultLookbacks
	}
	fees := req.FeeBpsList
	if fees == nil {
		fees = DefaultFeeBpsList
	}
	slippages := req.SlippageBpsList
	if slippages == nil {
		slippages = DefaultSlippageBpsList
	}
	sp := sweepPlan{
		topK:     deref(req.TopK, DefaultTopK),
		scoreKey: orDefault(req.ScoreKey, DefaultScoreKey),
	}

	if len(lookbacks) == 0 || len(fees) == 0 || len(slippages) == 0 {
		return sweepPlan{}, core.Errorf(core.ErrConfigInvalid, "sweep lists must not be empty")
	}
	if sp.topK <= 0 {
		return sweepPlan{}, core.Errorf(core.ErrConfigInvalid, "top_k must be > 0, got %d", sp.topK)
	}
	if !performance.ValidScoreKey(sp.scoreKey) {
		return sweepPlan{}, core.Errorf(core.ErrConfigInvalid, "unknown score_key %q", sp.scoreKey)
	}
	for _, lb := range lookbacks {
		if lb <= 0 {
			return sweepPlan{}, core.Errorf(core.ErrConfigInvalid, "lookbacks must be > 0, got %d", lb)
		}
	}
	for _, v := range fees {
		if err := (cost.Config{FeeBps: v}).Validate(); err != nil {
			return sweepPlan{}, err
		}
	}
	for _, v := range slippages {
		if err := (cost.Config{SlippageBps: v}).Validate(); err != nil {
			return sweepPlan{}, err
		}
	}

	sp.cells = grid(lookbacks, fees, slippages)
	return sp, nil
}

// Sweep runs every grid cell over the same observations and returns the
// top_k rows by score, descending, with null scores last and ties kept in
// enumeration order.
func (r *Runner) Sweep(ctx context.Context, req SweepRequest) (resp *SweepResponse, err error) {
	started := time.Now()
	defer func() { r.recorder.ObserveRun(KindSweep, time.Since(started), err) }()

	sp, err := req.plan()
	if err != nil {
		return nil, err
	}
	p, obs, err := r.prepare(ctx, req.Request)
	if err != nil {
		return nil, err
	}

	cells := sp.cells
	rows, err := runIndexed(ctx, r.opts.Workers, len(cells), func(ctx context.Context, i int) (SweepRow, error) {
		c := cells[i]
		res, err := r.simulate(ctx, p, p.withLookback(c.lookback), p.withCosts(c.feeBps, c.slippageBps), obs)
		if err != nil {
			return SweepRow{}, err
		}
		r.recorder.AddCells(KindSweep, 1)

		score, _ := res.Metrics.Score(sp.scoreKey)
		final := res.FinalEquity
		return SweepRow{
			Params: map[string]float64{
				ParamLookback:    float64(c.lookback),
				ParamFeeBps:      c.feeBps,
				ParamSlippageBps: c.slippageBps,
			},
			Score:       score,
			Metrics:     res.Metrics,
			Trades:      res.Metrics.Trades,
			FinalEquity: &final,
		}, nil
	})
	if err != nil {
		r.logger.Warn("sweep aborted", zap.Int("cells", len(cells)), zap.Error(err))
		return nil, err
	}

	RankRows(rows)
	if len(rows) > sp.topK {
		rows = rows[:sp.topK]
	}

	r.logger.Info("sweep completed",
		zap.Int("cells", len(cells)),
		zap.String("score_key", sp.scoreKey),
		zap.Int("returned", len(rows)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return &SweepResponse{Top: rows}, nil
}

// RankRows sorts rows by score descending. Nil scores sort last and equal
// scores keep their relative order.
func RankRows(rows []SweepRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Score, rows[j].Score
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a > *b
	})
}
