package core

import "testing"

func TestSide_Sign(t *testing.T) {
	if SideBuy.Sign() != 1 || SideSell.Sign() != -1 {
		t.Error("unexpected side signs")
	}
	if Side("HOLD").Valid() {
		t.Error("HOLD is not a valid side")
	}
}

func TestObservation_Spread(t *testing.T) {
	o := Observation{Bid: 99.5, Ask: 100.5, Mid: 100}
	if o.Spread() != 1 {
		t.Errorf("Spread() = %v, want 1", o.Spread())
	}
	crossed := Observation{Bid: 101, Ask: 100}
	if crossed.Spread() != 0 {
		t.Errorf("crossed spread = %v, want 0", crossed.Spread())
	}
}

func TestTrade_IsWin(t *testing.T) {
	win, loss := 5.0, -2.0
	tests := []struct {
		name    string
		trade   Trade
		closing bool
		want    bool
	}{
		{"opening fill", Trade{}, false, false},
		{"winning close", Trade{RealizedPnL: &win}, true, true},
		{"losing close", Trade{RealizedPnL: &loss}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.trade.IsClosing(); got != tt.closing {
				t.Errorf("IsClosing() = %v, want %v", got, tt.closing)
			}
			if got := tt.trade.IsWin(); got != tt.want {
				t.Errorf("IsWin() = %v, want %v", got, tt.want)
			}
		})
	}
}
