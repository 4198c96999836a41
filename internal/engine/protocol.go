// Package engine talks to the order engine child process over
// newline-delimited JSON and ships a stub engine speaking the same protocol.
package engine

import (
	"github.com/newthinker/novaquant/internal/core"
)

// Report types emitted by the engine.
const (
	ReportStatus = "engine_status"
	ReportAck    = "ack"
	ReportFill   = "fill"
	ReportReject = "reject"
)

// Order is one line written to the engine's stdin.
type Order struct {
	OrderID string    `json:"order_id"`
	Symbol  string    `json:"symbol"`
	Side    core.Side `json:"side"`
	Qty     float64   `json:"qty"`
	Px      float64   `json:"px"`
}

// Report is one line read from the engine's stdout.
type Report struct {
	Type    string    `json:"type"`
	Status  string    `json:"status,omitempty"`
	OrderID string    `json:"order_id,omitempty"`
	Symbol  string    `json:"symbol,omitempty"`
	Side    core.Side `json:"side,omitempty"`
	Qty     float64   `json:"qty,omitempty"`
	Px      float64   `json:"px,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	TsMs    int64     `json:"ts_ms"`
}

// Terminal reports whether r ends the report stream for orderID.
func (r Report) Terminal(orderID string) bool {
	return r.OrderID == orderID && (r.Type == ReportFill || r.Type == ReportReject)
}
