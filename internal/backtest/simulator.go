package backtest

import (
	"context"
	"math"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/cost"
	"github.com/newthinker/novaquant/internal/performance"
	"github.com/newthinker/novaquant/internal/portfolio"
	"github.com/newthinker/novaquant/internal/strategy"
)

// qtyEpsilon is the smallest position change worth trading.
const qtyEpsilon = 1e-9

// ctxCheckEvery bounds how many bars run between cancellation checks.
const ctxCheckEvery = 4096

// Phase is the simulator state.
type Phase int

const (
	PhaseWarmup Phase = iota
	PhaseTrading
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseWarmup:
		return "WARMUP"
	case PhaseTrading:
		return "TRADING"
	default:
		return "DONE"
	}
}

// Simulation is the input to one run. It owns nothing shared: every run
// builds its own ledger.
type Simulation struct {
	Symbol       string
	Strategy     strategy.Strategy
	Cost         *cost.Model
	TargetQty    float64
	StartingCash float64
}

// Result holds the complete output of one run
type Result struct {
	Symbol      string              `json:"symbol"`
	Equity      []float64           `json:"equity"`
	Trades      []core.Trade        `json:"trades"`
	Metrics     performance.Metrics `json:"metrics"`
	FinalEquity float64             `json:"final_equity"`
	Final       portfolio.State     `json:"-"`
	Traded      bool                `json:"-"`
}

// Simulate runs the per-bar loop over obs. Each bar marks the position to the
// mid; once the strategy's warm-up has passed, the target position is compared
// with the current one and any difference is filled through the cost model.
// After the last bar an open position is force-closed at that bar's quote, so
// every run ends flat.
func Simulate(ctx context.Context, sim Simulation, obs []core.Observation) (*Result, error) {
	if len(obs) == 0 {
		return nil, core.WrapError(core.ErrInsufficientData, nil)
	}

	ledger := portfolio.NewLedger(sim.StartingCash)
	warmup := sim.Strategy.Warmup()
	phase := PhaseWarmup

	mids := make([]float64, 0, len(obs))
	equity := make([]float64, 0, len(obs))
	var trades []core.Trade
	traded := false

	for i, o := range obs {
		if i%ctxCheckEvery == 0 && i > 0 {
			if err := ctx.Err(); err != nil {
				return nil, core.FromContext(err)
			}
		}

		mids = append(mids, o.Mid)
		ledger.Mark(sim.Symbol, o.Mid)

		if phase == PhaseWarmup && i >= warmup {
			phase = PhaseTrading
			traded = true
		}

		if phase == PhaseTrading {
			target := sim.Strategy.Signal(mids).Target(sim.TargetQty)
			delta := target - ledger.Position(sim.Symbol).Qty
			if math.Abs(delta) > qtyEpsilon {
				t, err := fill(ledger, sim, o, delta, false)
				if err != nil {
					return nil, err
				}
				trades = append(trades, t)
			}
		}

		equity = append(equity, ledger.Equity())
	}

	// PhaseDone: flatten at the final quote
	last := obs[len(obs)-1]
	if open := ledger.Position(sim.Symbol).Qty; math.Abs(open) > qtyEpsilon {
		t, err := fill(ledger, sim, last, -open, true)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
		equity[len(equity)-1] = ledger.Equity()
	}

	res := &Result{
		Symbol:      sim.Symbol,
		Equity:      equity,
		Trades:      trades,
		FinalEquity: equity[len(equity)-1],
		Final:       ledger.State(sim.Symbol),
		Traded:      traded,
	}
	if res.Trades == nil {
		res.Trades = []core.Trade{}
	}
	if traded {
		res.Metrics = performance.Calculate(equity, trades)
	} else {
		res.Metrics = performance.Empty()
	}
	return res, nil
}

func fill(ledger *portfolio.Ledger, sim Simulation, o core.Observation, delta float64, forced bool) (core.Trade, error) {
	side := core.SideBuy
	if delta < 0 {
		side = core.SideSell
	}
	qty := math.Abs(delta)

	px, fee, err := sim.Cost.Fill(side, qty, o)
	if err != nil {
		return core.Trade{}, err
	}
	realized, err := ledger.Apply(portfolio.Fill{Symbol: sim.Symbol, Side: side, Qty: qty, Px: px, Fee: fee})
	if err != nil {
		return core.Trade{}, err
	}

	return core.Trade{
		Index:       o.Index,
		Symbol:      sim.Symbol,
		Side:        side,
		Qty:         qty,
		Px:          px,
		Mid:         o.Mid,
		Bid:         o.Bid,
		Ask:         o.Ask,
		Fee:         fee,
		RealizedPnL: realized,
		Forced:      forced,
	}, nil
}
