package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Serve runs the stub engine: it announces itself, then acknowledges and
// instantly fills every order read from r at the order's own price. Orders
// that fail to decode or validate are rejected. It returns when r is
// exhausted or ctx is done.
func Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	emit := func(rep Report) error {
		rep.TsMs = time.Now().UnixMilli()
		return enc.Encode(rep)
	}

	if err := emit(Report{Type: ReportStatus, Status: "ready"}); err != nil {
		return err
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var o Order
		if err := json.Unmarshal([]byte(line), &o); err != nil {
			if err := emit(Report{Type: ReportReject, Reason: fmt.Sprintf("malformed order: %v", err)}); err != nil {
				return err
			}
			continue
		}
		if reason := validate(o); reason != "" {
			if err := emit(Report{Type: ReportReject, OrderID: o.OrderID, Symbol: o.Symbol, Reason: reason}); err != nil {
				return err
			}
			continue
		}

		if err := emit(Report{Type: ReportAck, OrderID: o.OrderID, Symbol: o.Symbol}); err != nil {
			return err
		}
		if err := emit(Report{Type: ReportFill, OrderID: o.OrderID, Symbol: o.Symbol, Side: o.Side, Qty: o.Qty, Px: o.Px}); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func validate(o Order) string {
	switch {
	case o.OrderID == "":
		return "order_id is required"
	case o.Symbol == "":
		return "symbol is required"
	case !o.Side.Valid():
		return fmt.Sprintf("invalid side %q", o.Side)
	case o.Qty <= 0:
		return "qty must be > 0"
	case o.Px <= 0:
		return "px must be > 0"
	}
	return ""
}
