package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Pearson returns the product-moment correlation and its two-sided p-value.
// Fewer than two observations yield (0, 1). Zero variance in either input
// yields a coefficient of 0.
func Pearson(x, y []float64) (float64, float64) {
	x, y = pairedFinite(x, y)
	n := len(x)
	if n < 2 {
		return 0, 1
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, 1
	}
	r = clampUnit(r)
	return r, tTestPValue(r, n)
}

// Spearman is Pearson on average-tie ranks.
func Spearman(x, y []float64) (float64, float64) {
	x, y = pairedFinite(x, y)
	if len(x) < 2 {
		return 0, 1
	}
	return Pearson(Ranks(x), Ranks(y))
}

// Kendall computes tau-b with a normal-approximation two-sided p-value.
func Kendall(x, y []float64) (float64, float64) {
	x, y = pairedFinite(x, y)
	n := len(x)
	if n < 2 {
		return 0, 1
	}

	var concordant, discordant, tiesX, tiesY float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := sign(x[i] - x[j])
			dy := sign(y[i] - y[j])
			switch {
			case dx == 0 && dy == 0:
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx == dy:
				concordant++
			default:
				discordant++
			}
		}
	}

	den := math.Sqrt((concordant + discordant + tiesX) * (concordant + discordant + tiesY))
	if den == 0 {
		return 0, 1
	}
	tau := clampUnit((concordant - discordant) / den)

	nf := float64(n)
	z := 3 * tau * math.Sqrt(nf*(nf-1)) / math.Sqrt(2*(2*nf+5))
	p := 2 * distuv.UnitNormal.Survival(math.Abs(z))
	return tau, math.Min(1, p)
}

// Ranks assigns 1-based ranks, averaging the ranks of tied values.
func Ranks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	ranks := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// tTestPValue is the two-sided p-value of H0: rho = 0 using a Student t
// distribution with n-2 degrees of freedom.
func tTestPValue(r float64, n int) float64 {
	if n < 3 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	if math.IsNaN(p) {
		return 1
	}
	return math.Min(1, math.Max(0, p))
}

// pairedFinite drops index positions where either side is NaN or Inf and
// truncates to the shorter input.
func pairedFinite(x, y []float64) ([]float64, []float64) {
	n := min(len(x), len(y))
	outX := make([]float64, 0, n)
	outY := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsInf(x[i], 0) || math.IsInf(y[i], 0) {
			continue
		}
		outX = append(outX, x[i])
		outY = append(outY, y[i])
	}
	return outX, outY
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
