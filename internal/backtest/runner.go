// Package backtest runs strategies over market data: single runs, parameter
// sweeps and walk-forward validation.
package backtest

import (
	"context"
	"time"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/cost"
	"github.com/newthinker/novaquant/internal/marketdata"
	"github.com/newthinker/novaquant/internal/performance"
	"github.com/newthinker/novaquant/internal/strategy"
	"go.uber.org/zap"
)

// DefaultStartingCash is the cash every run starts with unless configured.
const DefaultStartingCash = 10_000.0

// Run kinds reported to the Recorder.
const (
	KindRun         = "run"
	KindSweep       = "sweep"
	KindWalkForward = "walkforward"
)

// Recorder receives run telemetry.
type Recorder interface {
	ObserveRun(kind string, elapsed time.Duration, err error)
	AddCells(kind string, n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRun(string, time.Duration, error) {}
func (nopRecorder) AddCells(string, int)                    {}

// Options tunes a Runner.
type Options struct {
	StartingCash float64
	Workers      int // <= 0 means GOMAXPROCS
}

// Response is the output of a single backtest.
type Response struct {
	Symbol  string                   `json:"symbol"`
	Equity  []float64                `json:"equity"`
	Trades  []core.Trade             `json:"trades"`
	Metrics performance.Metrics      `json:"metrics"`
	Stats   performance.Significance `json:"stats"`
}

// Runner executes backtest requests
type Runner struct {
	strategies *strategy.Registry
	fetcher    marketdata.Fetcher
	opts       Options
	recorder   Recorder
	logger     *zap.Logger
}

// NewRunner creates a runner. fetcher serves historical requests and may be
// nil when only synthetic sources are used.
func NewRunner(strategies *strategy.Registry, fetcher marketdata.Fetcher, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StartingCash <= 0 {
		opts.StartingCash = DefaultStartingCash
	}
	return &Runner{
		strategies: strategies,
		fetcher:    fetcher,
		opts:       opts,
		recorder:   nopRecorder{},
		logger:     logger,
	}
}

// SetRecorder installs a telemetry sink.
func (r *Runner) SetRecorder(rec Recorder) {
	if rec == nil {
		rec = nopRecorder{}
	}
	r.recorder = rec
}

// Run executes one backtest.
func (r *Runner) Run(ctx context.Context, req Request) (resp *Response, err error) {
	started := time.Now()
	defer func() { r.recorder.ObserveRun(KindRun, time.Since(started), err) }()

	p, obs, err := r.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := r.simulate(ctx, p, p.strategy, p.cost, obs)
	if err != nil {
		return nil, err
	}

	r.logger.Info("backtest completed",
		zap.String("symbol", p.symbol),
		zap.String("source", p.source.Name()),
		zap.String("strategy", p.strategy.Kind),
		zap.Int("bars", len(obs)),
		zap.Int("trades", len(res.Trades)),
		zap.Float64("final_equity", res.FinalEquity),
		zap.Duration("elapsed", time.Since(started)),
	)

	return &Response{
		Symbol:  p.symbol,
		Equity:  res.Equity,
		Trades:  res.Trades,
		Metrics: res.Metrics,
		Stats:   performance.Analyze(res.Equity, p.seed),
	}, nil
}

// prepare resolves the request and loads its observations once, before any
// worker runs.
func (r *Runner) prepare(ctx context.Context, req Request) (plan, []core.Observation, error) {
	p, err := req.resolve(r.fetcher)
	if err != nil {
		return plan{}, nil, err
	}
	if _, err := r.strategies.New(p.strategy); err != nil {
		return plan{}, nil, err
	}

	obs, err := p.source.Observations(ctx)
	if err != nil {
		return plan{}, nil, err
	}
	if len(obs) == 0 {
		return plan{}, nil, core.Errorf(core.ErrInsufficientData, "%s produced no observations", p.source.Name())
	}
	return p, obs, nil
}

// simulate builds a fresh strategy and cost model and runs obs through them.
func (r *Runner) simulate(ctx context.Context, p plan, sc strategy.Config, cc cost.Config, obs []core.Observation) (*Result, error) {
	strat, err := r.strategies.New(sc)
	if err != nil {
		return nil, err
	}
	res, err := Simulate(ctx, Simulation{
		Symbol:       p.symbol,
		Strategy:     strat,
		Cost:         cost.New(cc),
		TargetQty:    sc.TargetQty,
		StartingCash: r.opts.StartingCash,
	}, obs)
	if err != nil {
		return nil, err
	}
	if !res.Traded {
		r.logger.Warn("lookback covers every bar, run never traded",
			zap.String("strategy", sc.Kind),
			zap.Int("lookback", sc.Lookback),
			zap.Int("bars", len(obs)),
		)
	}
	return res, nil
}
