// Package portfolio tracks cash, positions and PnL from fills.
package portfolio

import (
	"fmt"
	"math"
	"sort"

	"github.com/newthinker/novaquant/internal/core"
)

// qtyEpsilon absorbs float residue when a position is flattened.
const qtyEpsilon = 1e-9

// Position is the holding in one symbol. OpenFees are entry fees not yet
// charged against realized PnL; they are released pro rata as the position
// is reduced.
type Position struct {
	Symbol      string  `json:"symbol"`
	Qty         float64 `json:"qty"`
	AvgPx       float64 `json:"avg_px"`
	RealizedPnL float64 `json:"realized_pnl"`
	OpenFees    float64 `json:"-"`
}

// Fill is an executed trade applied to the ledger.
type Fill struct {
	Symbol string
	Side   core.Side
	Qty    float64
	Px     float64
	Fee    float64
}

// State is the single-symbol view used by the simulator.
type State struct {
	Cash          float64 `json:"cash"`
	PositionQty   float64 `json:"position_qty"`
	AvgPx         float64 `json:"avg_px"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// PositionView is a position valued at its latest mark.
type PositionView struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgPx         float64 `json:"avg_px"`
	Mark          float64 `json:"mark"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`
}

// Snapshot is the whole-portfolio view served to clients.
type Snapshot struct {
	Cash      float64        `json:"cash"`
	Equity    float64        `json:"equity"`
	Positions []PositionView `json:"positions"`
}

// Ledger holds cash, positions and marks. It is not safe for concurrent use;
// each backtest run owns its own ledger and the live session guards its one.
type Ledger struct {
	startingCash float64
	cash         float64
	positions    map[string]*Position
	marks        map[string]float64
}

// NewLedger creates a flat ledger holding startingCash.
func NewLedger(startingCash float64) *Ledger {
	return &Ledger{
		startingCash: startingCash,
		cash:         startingCash,
		positions:    make(map[string]*Position),
		marks:        make(map[string]float64),
	}
}

// Reset returns the ledger to its starting state.
func (l *Ledger) Reset() {
	l.cash = l.startingCash
	l.positions = make(map[string]*Position)
	l.marks = make(map[string]float64)
}

// StartingCash returns the cash the ledger was created with.
func (l *Ledger) StartingCash() float64 {
	return l.startingCash
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Mark records the latest valuation price for symbol.
func (l *Ledger) Mark(symbol string, px float64) {
	l.marks[symbol] = px
}

// MarkOf returns the latest mark for symbol, falling back to the average price
// when the symbol has never been marked.
func (l *Ledger) MarkOf(symbol string) float64 {
	if px, ok := l.marks[symbol]; ok {
		return px
	}
	if pos, ok := l.positions[symbol]; ok {
		return pos.AvgPx
	}
	return 0
}

// Position returns a copy of the position in symbol, zero-valued if absent.
func (l *Ledger) Position(symbol string) Position {
	if pos, ok := l.positions[symbol]; ok {
		return *pos
	}
	return Position{Symbol: symbol}
}

// Equity returns cash plus the marked value of every open position.
func (l *Ledger) Equity() float64 {
	equity := l.cash
	for sym, pos := range l.positions {
		equity += pos.Qty * l.MarkOf(sym)
	}
	return equity
}

// UnrealizedPnL returns (mark - avg_px) * qty for symbol.
func (l *Ledger) UnrealizedPnL(symbol string) float64 {
	pos, ok := l.positions[symbol]
	if !ok || pos.Qty == 0 {
		return 0
	}
	return (l.MarkOf(symbol) - pos.AvgPx) * pos.Qty
}

// State returns the single-symbol state for symbol.
func (l *Ledger) State(symbol string) State {
	pos := l.Position(symbol)
	return State{
		Cash:          l.cash,
		PositionQty:   pos.Qty,
		AvgPx:         pos.AvgPx,
		RealizedPnL:   pos.RealizedPnL,
		UnrealizedPnL: l.UnrealizedPnL(symbol),
	}
}

// Apply books a fill. Increases use weighted-average cost; decreases and
// reversals realize PnL against the single average-cost lot, net of the
// closing fee and the pro-rata share of entry fees. The returned pointer is
// nil when nothing was realized.
func (l *Ledger) Apply(f Fill) (*float64, error) {
	if !f.Side.Valid() {
		return nil, fmt.Errorf("portfolio: invalid side %q", f.Side)
	}
	if f.Qty <= 0 || f.Px <= 0 || f.Fee < 0 {
		return nil, fmt.Errorf("portfolio: invalid fill qty=%v px=%v fee=%v", f.Qty, f.Px, f.Fee)
	}

	sign := f.Side.Sign()
	l.cash -= sign*f.Qty*f.Px + f.Fee

	pos, ok := l.positions[f.Symbol]
	if !ok {
		pos = &Position{Symbol: f.Symbol}
		l.positions[f.Symbol] = pos
	}

	cur := pos.Qty
	if cur == 0 || math.Signbit(cur) == math.Signbit(sign) {
		newQty := cur + sign*f.Qty
		pos.AvgPx = (pos.AvgPx*math.Abs(cur) + f.Px*f.Qty) / math.Abs(newQty)
		pos.Qty = newQty
		pos.OpenFees += f.Fee
		return nil, nil
	}

	held := math.Abs(cur)
	closeQty := min(f.Qty, held)
	openQty := f.Qty - closeQty
	closeFee := f.Fee * closeQty / f.Qty

	direction := 1.0
	if cur < 0 {
		direction = -1
	}
	gross := closeQty * (f.Px - pos.AvgPx) * direction
	entryFee := pos.OpenFees * closeQty / held
	pos.OpenFees -= entryFee

	realized := gross - closeFee - entryFee
	pos.RealizedPnL += realized

	newQty := cur + sign*f.Qty
	switch {
	case math.Abs(newQty) < qtyEpsilon:
		pos.Qty, pos.AvgPx, pos.OpenFees = 0, 0, 0
	case openQty > qtyEpsilon:
		pos.Qty = newQty
		pos.AvgPx = f.Px
		pos.OpenFees = f.Fee - closeFee
	default:
		pos.Qty = newQty
	}

	return &realized, nil
}

// Snapshot values every known position, including flat ones that carry
// realized PnL, ordered by symbol.
func (l *Ledger) Snapshot() Snapshot {
	views := make([]PositionView, 0, len(l.positions))
	for sym, pos := range l.positions {
		views = append(views, PositionView{
			Symbol:        sym,
			Qty:           pos.Qty,
			AvgPx:         pos.AvgPx,
			Mark:          l.MarkOf(sym),
			UnrealizedPnL: l.UnrealizedPnL(sym),
			RealizedPnL:   pos.RealizedPnL,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Symbol < views[j].Symbol })

	return Snapshot{
		Cash:      l.cash,
		Equity:    l.Equity(),
		Positions: views,
	}
}
