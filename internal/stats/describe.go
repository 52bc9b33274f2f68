// Package stats holds the numerical primitives used by the analytics
// engine. Everything operates on plain float64 slices so callers stay free of
// gonum types.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrSingularFit      = errors.New("singular or ill-conditioned fit")
	ErrNonFinite        = errors.New("model produced non-finite values")
)

// Mean returns 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

func Sum(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Sum(x)
}

// PopStdDev is the population standard deviation (divisor n).
func PopStdDev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.PopStdDev(x, nil)
}

// SampleStdDev is the sample standard deviation (divisor n-1). A single
// observation has no spread and yields 0.
func SampleStdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.StdDev(x, nil)
}

func Min(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Min(x)
}

func Max(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Max(x)
}

// Percentile returns the p-th percentile (0..100) using linear interpolation
// between closest ranks, the same definition as the default in most
// dataframe libraries (Hyndman-Fan type 7).
func Percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// SafeDiv returns 0 when the denominator is zero or the result is not finite.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	out := num / den
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0
	}
	return out
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
