package core

import "time"

// Side is the direction of a fill or order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	if s == SideBuy {
		return 1
	}
	return -1
}

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Observation is one bar of market data. Historical bars carry Bid == Ask == Mid.
type Observation struct {
	Index int     `json:"index"`
	Bid   float64 `json:"bid"`
	Ask   float64 `json:"ask"`
	Mid   float64 `json:"mid"`
}

// Spread returns ask minus bid, never negative.
func (o Observation) Spread() float64 {
	return max(0, o.Ask-o.Bid)
}

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol   string
	Interval string // "1m", "5m", "1d"
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Time     time.Time
}

// Trade is one executed fill. RealizedPnL is set only when the fill reduced
// or closed an existing position.
type Trade struct {
	Index       int      `json:"index"`
	Symbol      string   `json:"symbol"`
	Side        Side     `json:"side"`
	Qty         float64  `json:"qty"`
	Px          float64  `json:"px"`
	Mid         float64  `json:"mid,omitempty"`
	Bid         float64  `json:"bid,omitempty"`
	Ask         float64  `json:"ask,omitempty"`
	Fee         float64  `json:"fee"`
	RealizedPnL *float64 `json:"realized_pnl,omitempty"`
	Forced      bool     `json:"forced,omitempty"`
}

// IsClosing returns true if the trade realized PnL on an existing position.
func (t Trade) IsClosing() bool {
	return t.RealizedPnL != nil
}

// IsWin returns true if the trade closed with positive realized PnL.
func (t Trade) IsWin() bool {
	return t.RealizedPnL != nil && *t.RealizedPnL > 0
}
