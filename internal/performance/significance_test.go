package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seedOf(v int64) *int64 { return &v }

func TestBootstrapMeanCI(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	ci := BootstrapMeanCI(xs, 2000, 0.05, seedOf(1))
	assert.InDelta(t, 5.5, ci.Mean, 1e-12)
	assert.Less(t, ci.Lo, ci.Mean)
	assert.Greater(t, ci.Hi, ci.Mean)
	assert.GreaterOrEqual(t, ci.Lo, 1.0)
	assert.LessOrEqual(t, ci.Hi, 10.0)

	again := BootstrapMeanCI(xs, 2000, 0.05, seedOf(1))
	assert.Equal(t, ci, again, "same seed reproduces the interval")
}

func TestBootstrapMeanCI_Empty(t *testing.T) {
	assert.Equal(t, ConfidenceInterval{}, BootstrapMeanCI(nil, 100, 0.05, nil))
}

func TestPermutationMeanGtZero(t *testing.T) {
	positive := []float64{1, 2, 1.5, 3, 2.5, 1, 2, 2, 1.2, 2.8}
	res := PermutationMeanGtZero(positive, 5000, seedOf(3))
	assert.InDelta(t, 1.9, res.Mean, 1e-12)
	assert.Less(t, res.PValue, 0.05)

	negative := []float64{-1, -2, -1.5, -3}
	res = PermutationMeanGtZero(negative, 5000, seedOf(3))
	assert.Greater(t, res.PValue, 0.5)
}

func TestPermutationMeanGtZero_Empty(t *testing.T) {
	assert.Equal(t, PermutationResult{Mean: 0, PValue: 1}, PermutationMeanGtZero(nil, 10, nil))
}

func TestAnalyze(t *testing.T) {
	sig := Analyze([]float64{100, 101, 103, 102, 104}, seedOf(7))
	assert.InDelta(t, 1.0, sig.BootstrapMeanCI.Mean, 1e-12)
	assert.InDelta(t, 1.0, sig.PermutationMeanGtZero.Mean, 1e-12)

	flat := Analyze([]float64{100}, nil)
	assert.Equal(t, 1.0, flat.PermutationMeanGtZero.PValue)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, quantile(sorted, 0))
	assert.Equal(t, 3.0, quantile(sorted, 0.5))
	assert.Equal(t, 5.0, quantile(sorted, 1))
	assert.InDelta(t, 1.1, quantile(sorted, 0.025), 1e-12)
}
