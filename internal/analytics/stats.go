package analytics

import "math"

// Mean returns the average of data, or 0 for an empty slice.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// StdDev returns the sample standard deviation (n-1 denominator).
// Fewer than two points have no spread, so the result is 0.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	m := Mean(data)
	variance := 0.0
	for _, v := range data {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(data)-1))
}

// MovingAverage returns the trailing moving average with the given window.
// Returns nil when data is shorter than the window.
func MovingAverage(data []float64, window int) []float64 {
	if window <= 0 || len(data) < window {
		return nil
	}
	result := make([]float64, 0, len(data)-window+1)
	sum := 0.0
	for _, v := range data[:window] {
		sum += v
	}
	result = append(result, sum/float64(window))
	for i := window; i < len(data); i++ {
		sum += data[i] - data[i-window]
		result = append(result, sum/float64(window))
	}
	return result
}

// TrendSlope fits a least-squares line over data indexed 0..n-1 and returns
// its slope. Degenerate inputs yield 0.
func TrendSlope(data []float64) float64 {
	n := float64(len(data))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range data {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// Volatility is the coefficient of variation: std dev relative to the mean.
// A zero mean yields 0 rather than a division blow-up.
func Volatility(data []float64) float64 {
	m := Mean(data)
	if m == 0 {
		return 0
	}
	return StdDev(data) / m
}
