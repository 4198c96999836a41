// Package cost converts intended trades into executed fill prices and fees.
package cost

import (
	"fmt"

	"github.com/newthinker/novaquant/internal/core"
)

const bpsDenominator = 10_000.0

// Config holds basis-point cost parameters. SpreadBps is consumed by the
// synthetic market data sources, not by Fill: the spread is already in the
// observation's bid/ask.
type Config struct {
	FeeBps      float64 `json:"fee_bps"`
	SlippageBps float64 `json:"slippage_bps"`
	SpreadBps   float64 `json:"spread_bps"`
}

// Upper bounds keeping every fill price positive: slippage of a full price
// zeroes a sell, and a spread of twice the mid zeroes the bid.
const (
	MaxSlippageBps = bpsDenominator
	MaxSpreadBps   = 2 * bpsDenominator
)

// Validate rejects negative basis-point values and slippage or spread large
// enough to push a fill price to zero or below.
func (c Config) Validate() error {
	if c.FeeBps < 0 {
		return core.Errorf(core.ErrConfigInvalid, "fee_bps must be >= 0, got %v", c.FeeBps)
	}
	if c.SlippageBps < 0 || c.SlippageBps >= MaxSlippageBps {
		return core.Errorf(core.ErrConfigInvalid, "slippage_bps must be in [0, %v), got %v", MaxSlippageBps, c.SlippageBps)
	}
	if c.SpreadBps < 0 || c.SpreadBps >= MaxSpreadBps {
		return core.Errorf(core.ErrConfigInvalid, "spread_bps must be in [0, %v), got %v", MaxSpreadBps, c.SpreadBps)
	}
	return nil
}

// Model fills every order fully: no partial fills, no rejects.
type Model struct {
	cfg Config
}

// New creates a cost model.
func New(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Config returns the model's parameters.
func (m *Model) Config() Config {
	return m.cfg
}

// Fill prices a trade of qty against obs. Buys lift the ask and sells hit the
// bid, then slippage moves the price away from the trader. The fee is charged
// on notional and is never negative.
func (m *Model) Fill(side core.Side, qty float64, obs core.Observation) (px, fee float64, err error) {
	if !side.Valid() {
		return 0, 0, fmt.Errorf("cost: invalid side %q", side)
	}
	if qty <= 0 {
		return 0, 0, fmt.Errorf("cost: qty must be > 0, got %v", qty)
	}

	slip := m.cfg.SlippageBps / bpsDenominator
	if side == core.SideBuy {
		px = obs.Ask * (1 + slip)
	} else {
		px = obs.Bid * (1 - slip)
	}

	fee = qty * px * (m.cfg.FeeBps / bpsDenominator)
	return px, max(fee, 0), nil
}

// SplitSpread derives bid/ask by splitting spreadBps symmetrically around mid.
func SplitSpread(mid, spreadBps float64) (bid, ask float64) {
	half := mid * (spreadBps / bpsDenominator) / 2
	return mid - half, mid + half
}
