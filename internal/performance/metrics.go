// Package performance derives risk-adjusted statistics from equity curves and
// trade logs. Values are per bar: nothing is annualized.
package performance

import (
	"math"

	"github.com/newthinker/novaquant/internal/core"
)

// Metrics summarizes one run. A nil field means the statistic is undefined
// for the sample, which is distinct from zero.
type Metrics struct {
	Sharpe         *float64 `json:"sharpe"`
	Sortino        *float64 `json:"sortino"`
	MaxDrawdownPct *float64 `json:"max_drawdown_pct"`
	ProfitFactor   *float64 `json:"profit_factor"`
	WinRate        *float64 `json:"win_rate"`
	Trades         int      `json:"trades"`
}

// Score keys accepted by Metrics.Score.
const (
	KeySharpe         = "sharpe"
	KeySortino        = "sortino"
	KeyMaxDrawdownPct = "max_drawdown_pct"
	KeyProfitFactor   = "profit_factor"
	KeyWinRate        = "win_rate"
	KeyTrades         = "trades"
)

// ValidScoreKey reports whether key names a Metrics field.
func ValidScoreKey(key string) bool {
	switch key {
	case KeySharpe, KeySortino, KeyMaxDrawdownPct, KeyProfitFactor, KeyWinRate, KeyTrades:
		return true
	}
	return false
}

// Score extracts the named statistic. ok is false for unknown keys.
func (m Metrics) Score(key string) (score *float64, ok bool) {
	switch key {
	case KeySharpe:
		return m.Sharpe, true
	case KeySortino:
		return m.Sortino, true
	case KeyMaxDrawdownPct:
		return m.MaxDrawdownPct, true
	case KeyProfitFactor:
		return m.ProfitFactor, true
	case KeyWinRate:
		return m.WinRate, true
	case KeyTrades:
		return ptr(float64(m.Trades)), true
	}
	return nil, false
}

// Empty is the all-null result for a run that never left warm-up.
func Empty() Metrics {
	return Metrics{}
}

// Calculate computes metrics from an equity curve and trade log.
func Calculate(equity []float64, trades []core.Trade) Metrics {
	var pnls []float64
	for _, t := range trades {
		if t.IsClosing() {
			pnls = append(pnls, *t.RealizedPnL)
		}
	}
	return score(equity, pnls, len(trades))
}

// FromEquity scores a live session curve, where every step change counts as
// one trade outcome.
func FromEquity(equity []float64) Metrics {
	diffs := Diffs(equity)
	return score(equity, diffs, len(diffs))
}

func score(equity, pnls []float64, trades int) Metrics {
	rets := Returns(equity)

	m := Metrics{
		Sharpe:         sharpe(rets),
		Sortino:        sortino(rets),
		MaxDrawdownPct: maxDrawdownPct(equity),
		Trades:         trades,
	}

	var wins int
	var gains, losses float64
	for _, pnl := range pnls {
		switch {
		case pnl > 0:
			wins++
			gains += pnl
		case pnl < 0:
			losses += pnl
		}
	}
	if losses < 0 {
		m.ProfitFactor = ptr(gains / math.Abs(losses))
	}
	if len(pnls) > 0 {
		m.WinRate = ptr(float64(wins) / float64(len(pnls)))
	}
	return m
}

// Returns computes simple per-step returns, skipping steps whose prior
// equity is zero.
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 {
			continue
		}
		out = append(out, equity[i]/prev-1)
	}
	return out
}

// Diffs returns equity[i] - equity[i-1] for every step.
func Diffs(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		out[i-1] = equity[i] - equity[i-1]
	}
	return out
}

func sharpe(rets []float64) *float64 {
	if len(rets) < 2 {
		return nil
	}
	sd := pstdev(rets)
	if sd == 0 {
		return nil
	}
	return ptr(mean(rets) / sd)
}

func sortino(rets []float64) *float64 {
	var downs []float64
	for _, r := range rets {
		if r < 0 {
			downs = append(downs, r)
		}
	}
	if len(downs) == 0 {
		return nil
	}

	var sd float64
	if len(downs) == 1 {
		sd = math.Abs(downs[0])
	} else {
		sd = pstdev(downs)
	}
	if sd == 0 {
		return nil
	}
	return ptr(mean(rets) / sd)
}

func maxDrawdownPct(equity []float64) *float64 {
	if len(equity) < 2 {
		return nil
	}
	peak := equity[0]
	var maxDD float64
	for _, v := range equity {
		peak = max(peak, v)
		if peak > 0 {
			maxDD = max(maxDD, (peak-v)/peak*100)
		}
	}
	return &maxDD
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// pstdev is the population standard deviation.
func pstdev(xs []float64) float64 {
	mu := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - mu) * (x - mu)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func ptr(v float64) *float64 {
	return &v
}
