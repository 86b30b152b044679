package screener

import "math"

// confirmsTrend reports whether the last `periods` consecutive transitions
// of the price window are strictly monotonic in the requested direction.
// Fewer than periods+1 samples never confirm.
func confirmsTrend(prices []float64, direction string, periods int) bool {
	if len(prices) < periods+1 {
		return false
	}
	for i := 1; i <= periods; i++ {
		cur := prices[len(prices)-i]
		prev := prices[len(prices)-i-1]
		switch direction {
		case "up":
			if cur <= prev {
				return false
			}
		case "down":
			if cur >= prev {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// volumePriceCorrelation computes the Pearson correlation between
// period-over-period price deltas and the volume readings aligned one
// sample later. Returns 0 on fewer than 3 samples or a flat series.
func volumePriceCorrelation(prices, volumes []float64) float64 {
	if len(prices) < 3 || len(volumes) < 3 {
		return 0
	}
	n := len(prices)
	if len(volumes) < n {
		n = len(volumes)
	}
	prices = prices[len(prices)-n:]
	volumes = volumes[len(volumes)-n:]

	deltas := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		deltas = append(deltas, prices[i]-prices[i-1])
	}
	return pearson(deltas, volumes[1:])
}

func pearson(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
