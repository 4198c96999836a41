package performance

import (
	"math/rand/v2"
	"sort"
)

const (
	DefaultBootstrapSamples   = 2000
	DefaultBootstrapAlpha     = 0.05
	DefaultPermutationSamples = 5000
)

// ConfidenceInterval is a bootstrap interval for a sample mean.
type ConfidenceInterval struct {
	Mean float64 `json:"mean"`
	Lo   float64 `json:"lo"`
	Hi   float64 `json:"hi"`
}

// PermutationResult is a one-sided test that the sample mean exceeds zero.
type PermutationResult struct {
	Mean   float64 `json:"mean"`
	PValue float64 `json:"p_value"`
}

// Significance bundles the resampling statistics reported with a backtest.
type Significance struct {
	BootstrapMeanCI       ConfidenceInterval `json:"bootstrap_pnl_mean_ci"`
	PermutationMeanGtZero PermutationResult  `json:"perm_test_mean_gt_zero"`
}

// Analyze runs both resampling tests on per-bar equity changes using the
// default sample counts.
func Analyze(equity []float64, seed *int64) Significance {
	diffs := Diffs(equity)
	return Significance{
		BootstrapMeanCI:       BootstrapMeanCI(diffs, DefaultBootstrapSamples, DefaultBootstrapAlpha, seed),
		PermutationMeanGtZero: PermutationMeanGtZero(diffs, DefaultPermutationSamples, seed),
	}
}

// BootstrapMeanCI resamples xs with replacement n times and returns the
// alpha/2 and 1-alpha/2 quantiles of the resampled means.
func BootstrapMeanCI(xs []float64, n int, alpha float64, seed *int64) ConfidenceInterval {
	if len(xs) == 0 || n <= 0 {
		return ConfidenceInterval{}
	}

	rng := newRand(seed)
	means := make([]float64, n)
	for i := range means {
		var sum float64
		for range xs {
			sum += xs[rng.IntN(len(xs))]
		}
		means[i] = sum / float64(len(xs))
	}
	sort.Float64s(means)

	return ConfidenceInterval{
		Mean: mean(xs),
		Lo:   quantile(means, alpha/2),
		Hi:   quantile(means, 1-alpha/2),
	}
}

// PermutationMeanGtZero is a sign-flip test under the null that the mean is
// zero. The p-value is the share of flipped means at least as large as the
// observed mean.
func PermutationMeanGtZero(xs []float64, n int, seed *int64) PermutationResult {
	if len(xs) == 0 || n <= 0 {
		return PermutationResult{Mean: 0, PValue: 1}
	}

	rng := newRand(seed)
	observed := mean(xs)
	var hits int
	for range n {
		var sum float64
		for _, x := range xs {
			if rng.IntN(2) == 0 {
				sum -= x
			} else {
				sum += x
			}
		}
		if sum/float64(len(xs)) >= observed {
			hits++
		}
	}

	return PermutationResult{Mean: observed, PValue: float64(hits) / float64(n)}
}

// quantile interpolates linearly between closest ranks of sorted data.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func newRand(seed *int64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := uint64(*seed)
	return rand.New(rand.NewPCG(s, ^s))
}
