package stats

import "math"

// Decomposition is a classical additive split: observed = trend + seasonal + resid.
// Trend and Resid are NaN where the centered moving average is undefined.
type Decomposition struct {
	Period   int
	Trend    []float64
	Seasonal []float64
	Resid    []float64
}

// DecomposeAdditive runs a centered moving-average decomposition. The series
// must cover at least two full periods.
func DecomposeAdditive(x []float64, period int) (Decomposition, error) {
	if period < 2 || len(x) < 2*period {
		return Decomposition{}, ErrInsufficientData
	}
	if !allFinite(x) {
		return Decomposition{}, ErrNonFinite
	}

	trend := centeredMovingAverage(x, period)

	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range x {
		if math.IsNaN(trend[i]) {
			continue
		}
		sums[i%period] += v - trend[i]
		counts[i%period]++
	}

	means := make([]float64, period)
	var grand float64
	for i := range means {
		if counts[i] == 0 {
			return Decomposition{}, ErrInsufficientData
		}
		means[i] = sums[i] / float64(counts[i])
		grand += means[i]
	}
	grand /= float64(period)

	seasonal := make([]float64, len(x))
	resid := make([]float64, len(x))
	for i, v := range x {
		seasonal[i] = means[i%period] - grand
		resid[i] = v - trend[i] - seasonal[i]
	}

	return Decomposition{Period: period, Trend: trend, Seasonal: seasonal, Resid: resid}, nil
}

// centeredMovingAverage uses equal weights for odd periods and the 2xMA
// filter (half weights at both ends) for even periods.
func centeredMovingAverage(x []float64, period int) []float64 {
	weights := make([]float64, 0, period+1)
	if period%2 == 1 {
		for i := 0; i < period; i++ {
			weights = append(weights, 1/float64(period))
		}
	} else {
		weights = append(weights, 0.5/float64(period))
		for i := 1; i < period; i++ {
			weights = append(weights, 1/float64(period))
		}
		weights = append(weights, 0.5/float64(period))
	}

	half := len(weights) / 2
	out := make([]float64, len(x))
	for i := range out {
		if i < half || i+half >= len(x) {
			out[i] = math.NaN()
			continue
		}
		var acc float64
		for k, w := range weights {
			acc += w * x[i-half+k]
		}
		out[i] = acc
	}
	return out
}
