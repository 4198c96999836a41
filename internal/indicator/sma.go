// Package indicator holds rolling price statistics shared by strategies.
package indicator

// LastSMA returns the mean of the trailing period prices. ok is false when
// period is not positive or there are fewer than period prices.
func LastSMA(prices []float64, period int) (avg float64, ok bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), true
}
