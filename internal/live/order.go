package live

import (
	"github.com/google/uuid"
	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/engine"
)

// Order statuses returned by Execute and counted in metrics.
const (
	StatusSubmitted   = "submitted"
	StatusFilled      = "filled"
	StatusRejected    = "rejected"
	StatusHalted      = "halted"
	StatusInvalid     = "invalid"
	StatusUnavailable = "unavailable"
)

// Order is a live order request.
type Order struct {
	OrderID string    `json:"order_id"`
	Symbol  string    `json:"symbol"`
	Side    core.Side `json:"side"`
	Qty     float64   `json:"qty"`
	Px      float64   `json:"px"`
}

// Notional is qty * px.
func (o Order) Notional() float64 {
	return o.Qty * o.Px
}

// Normalize assigns an order id when none was given.
func (o Order) Normalize() Order {
	if o.OrderID == "" {
		o.OrderID = uuid.NewString()
	}
	return o
}

// Validate checks the order fields.
func (o Order) Validate() error {
	switch {
	case o.Symbol == "":
		return core.Errorf(core.ErrConfigInvalid, "symbol is required")
	case !o.Side.Valid():
		return core.Errorf(core.ErrConfigInvalid, "side must be BUY or SELL, got %q", o.Side)
	case o.Qty <= 0:
		return core.Errorf(core.ErrConfigInvalid, "qty must be > 0, got %v", o.Qty)
	case o.Px <= 0:
		return core.Errorf(core.ErrConfigInvalid, "px must be > 0, got %v", o.Px)
	}
	return nil
}

func (o Order) toEngine() engine.Order {
	return engine.Order{OrderID: o.OrderID, Symbol: o.Symbol, Side: o.Side, Qty: o.Qty, Px: o.Px}
}

// Execution is the outcome of a submitted order.
type Execution struct {
	OrderID string          `json:"order_id"`
	Status  string          `json:"status"`
	Reports []engine.Report `json:"reports"`
}
