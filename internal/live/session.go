package live

import (
	"context"
	"errors"
	"sync"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/engine"
	"github.com/newthinker/novaquant/internal/performance"
	"github.com/newthinker/novaquant/internal/portfolio"
	"go.uber.org/zap"
)

// DefaultStartingCash is the live session's opening cash.
const DefaultStartingCash = 1_000_000.0

// maxEquityPoints bounds the equity series the live metrics are computed
// over. The drawdown peak is tracked over the whole session regardless.
const maxEquityPoints = 10_000

// Executor submits orders to an order engine.
type Executor interface {
	Submit(ctx context.Context, o engine.Order) ([]engine.Report, error)
}

// Observer receives session telemetry.
type Observer interface {
	SetLiveEquity(equity, drawdownPct float64)
	RecordOrder(status string)
}

type nopObserver struct{}

func (nopObserver) SetLiveEquity(float64, float64) {}
func (nopObserver) RecordOrder(string)             {}

// Config configures a Session.
type Config struct {
	StartingCash float64
	Risk         RiskConfig
}

// Session is the live portfolio, its equity series and the halt flag. All
// state changes are serialized and each one publishes a metrics snapshot.
type Session struct {
	mu       sync.Mutex
	cfg      Config
	ledger   *portfolio.Ledger
	risk     *RiskChecker
	equity   []float64
	peak     float64
	halted   bool
	executor Executor
	hub      *Broadcaster
	observer Observer
	logger   *zap.Logger
}

// NewSession creates a flat session. executor may be nil, in which case every
// order fails as ENGINE_UNAVAILABLE.
func NewSession(cfg Config, executor Executor, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StartingCash <= 0 {
		cfg.StartingCash = DefaultStartingCash
	}
	if cfg.Risk == (RiskConfig{}) {
		cfg.Risk = DefaultRiskConfig()
	}
	s := &Session{
		cfg:      cfg,
		ledger:   portfolio.NewLedger(cfg.StartingCash),
		risk:     NewRiskChecker(cfg.Risk),
		executor: executor,
		observer: nopObserver{},
		logger:   logger,
	}
	s.equity = []float64{cfg.StartingCash}
	s.peak = cfg.StartingCash
	s.hub = NewBroadcaster(performance.FromEquity(s.equity))
	return s
}

// SetObserver installs a telemetry sink.
func (s *Session) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

// Broadcaster returns the session's metrics feed.
func (s *Session) Broadcaster() *Broadcaster {
	return s.hub
}

// Reset flattens the session back to its starting cash and clears the halt.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger.Reset()
	s.equity = []float64{s.cfg.StartingCash}
	s.peak = s.cfg.StartingCash
	s.halted = false
	s.publishLocked()
}

// OnTick marks symbol at mid, extends the equity series and re-evaluates the
// drawdown halt.
func (s *Session) OnTick(symbol string, mid float64) {
	if mid <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger.Mark(symbol, mid)
	s.appendEquityLocked()
}

// Execute validates o, applies the risk checks, submits it to the engine and
// books any fill the engine reports for it.
func (s *Session) Execute(ctx context.Context, o Order) (*Execution, error) {
	o = o.Normalize()
	if err := o.Validate(); err != nil {
		s.record(StatusInvalid)
		return nil, err
	}

	s.mu.Lock()
	err := s.risk.Check(o, s.halted, s.drawdownLocked())
	s.mu.Unlock()
	if err != nil {
		status := StatusRejected
		if errors.Is(err, core.ErrTradingHalted) {
			status = StatusHalted
		}
		s.record(status)
		s.logger.Warn("order refused by risk checks",
			zap.String("order_id", o.OrderID),
			zap.String("symbol", o.Symbol),
			zap.Float64("notional", o.Notional()),
			zap.Error(err),
		)
		return nil, err
	}

	if s.executor == nil {
		s.record(StatusUnavailable)
		return nil, core.Errorf(core.ErrEngineUnavailable, "no order engine configured")
	}
	reports, err := s.executor.Submit(ctx, o.toEngine())
	if err != nil {
		if errors.Is(err, core.ErrEngineUnavailable) {
			s.record(StatusUnavailable)
		}
		return nil, err
	}

	exec := &Execution{OrderID: o.OrderID, Status: StatusSubmitted, Reports: reports}

	s.mu.Lock()
	for _, rep := range reports {
		if rep.OrderID != o.OrderID {
			continue
		}
		switch rep.Type {
		case engine.ReportFill:
			if err := s.applyFillLocked(rep); err != nil {
				s.logger.Warn("ignoring unusable fill report", zap.String("order_id", o.OrderID), zap.Error(err))
				continue
			}
			exec.Status = StatusFilled
		case engine.ReportReject:
			exec.Status = StatusRejected
		}
	}
	s.mu.Unlock()

	s.record(exec.Status)
	s.logger.Info("order executed",
		zap.String("order_id", o.OrderID),
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.Float64("qty", o.Qty),
		zap.Float64("px", o.Px),
		zap.String("status", exec.Status),
		zap.Int("reports", len(reports)),
	)
	return exec, nil
}

func (s *Session) applyFillLocked(rep engine.Report) error {
	if _, err := s.ledger.Apply(portfolio.Fill{
		Symbol: rep.Symbol,
		Side:   rep.Side,
		Qty:    rep.Qty,
		Px:     rep.Px,
	}); err != nil {
		return err
	}
	s.appendEquityLocked()
	return nil
}

func (s *Session) appendEquityLocked() {
	eq := s.ledger.Equity()
	s.equity = append(s.equity, eq)
	if n := len(s.equity); n > maxEquityPoints {
		s.equity = append(s.equity[:0], s.equity[n-maxEquityPoints:]...)
	}
	s.peak = max(s.peak, eq)

	dd := s.drawdownLocked()
	if !s.halted && s.risk.Breached(dd) {
		s.halted = true
		s.logger.Warn("trading halted",
			zap.Float64("drawdown_pct", dd),
			zap.Float64("limit_pct", s.risk.Config().MaxSessionDrawdownPct),
			zap.Float64("equity", eq),
		)
	}
	s.publishLocked()
}

func (s *Session) drawdownLocked() float64 {
	if s.peak <= 0 {
		return 0
	}
	return (s.peak - s.equity[len(s.equity)-1]) / s.peak * 100
}

func (s *Session) publishLocked() {
	s.hub.Publish(performance.FromEquity(s.equity))
	s.observer.SetLiveEquity(s.equity[len(s.equity)-1], s.drawdownLocked())
}

func (s *Session) record(status string) {
	s.mu.Lock()
	o := s.observer
	s.mu.Unlock()
	o.RecordOrder(status)
}

// Metrics returns the latest published metrics snapshot.
func (s *Session) Metrics() performance.Metrics {
	return s.hub.Latest()
}

// Snapshot values the portfolio at the latest marks.
func (s *Session) Snapshot() portfolio.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Snapshot()
}

// State summarizes the session for status endpoints.
type State struct {
	Equity      float64 `json:"equity"`
	Peak        float64 `json:"peak"`
	DrawdownPct float64 `json:"drawdown_pct"`
	Halted      bool    `json:"halted"`
}

// State returns the current equity, drawdown and halt flag.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Equity:      s.equity[len(s.equity)-1],
		Peak:        s.peak,
		DrawdownPct: s.drawdownLocked(),
		Halted:      s.halted,
	}
}
