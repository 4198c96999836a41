package momentum

import (
	"testing"

	"github.com/newthinker/novaquant/internal/strategy"
)

func TestMomentum_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*Momentum)(nil)
}

func TestMomentum_Signal(t *testing.T) {
	s := New(2)

	tests := []struct {
		name string
		mids []float64
		want strategy.Signal
	}{
		{"warmup", []float64{100, 101}, strategy.Flat},
		{"rising", []float64{100, 90, 101}, strategy.Long},
		{"falling", []float64{100, 110, 99}, strategy.Short},
		{"unchanged", []float64{100, 120, 100}, strategy.Flat},
		{"uses only lookback distance", []float64{500, 100, 90, 101}, strategy.Long},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Signal(tt.mids); got != tt.want {
				t.Errorf("Signal(%v) = %s, want %s", tt.mids, got, tt.want)
			}
		})
	}
}

func TestMomentum_Factory(t *testing.T) {
	s, err := Factory(strategy.Config{Kind: "momentum", Lookback: 7, TargetQty: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name() != "momentum" || s.Warmup() != 7 {
		t.Errorf("unexpected strategy %s warmup %d", s.Name(), s.Warmup())
	}
}
