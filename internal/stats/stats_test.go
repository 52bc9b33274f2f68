package stats

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileMatchesLinearInterpolation(t *testing.T) {
	x := []float64{1, 2, 3, 4}

	assert.InDelta(t, 1.75, Percentile(x, 25), 1e-12)
	assert.InDelta(t, 3.25, Percentile(x, 75), 1e-12)
	assert.InDelta(t, 2.5, Percentile(x, 50), 1e-12)
	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestStdDevVariants(t *testing.T) {
	x := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.InDelta(t, 2.0, PopStdDev(x), 1e-12)
	assert.InDelta(t, 2.138089935, SampleStdDev(x), 1e-9)
	assert.Equal(t, 0.0, SampleStdDev([]float64{3}))
}

func TestSafeDiv(t *testing.T) {
	assert.Equal(t, 0.0, SafeDiv(10, 0))
	assert.Equal(t, 2.5, SafeDiv(5, 2))
}

func TestFitLineRecoversRamp(t *testing.T) {
	y := make([]float64, 14)
	for i := range y {
		y[i] = float64(10 * (i + 1))
	}

	line, err := FitLine(y)
	require.NoError(t, err)
	assert.InDelta(t, 10, line.Slope, 1e-9)
	assert.InDelta(t, 10, line.Intercept, 1e-9)
	assert.InDelta(t, 150, line.At(14), 1e-9)
}

func TestFitLineNeedsTwoPoints(t *testing.T) {
	_, err := FitLine([]float64{1})
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestPearsonPerfectAndDegenerate(t *testing.T) {
	r, p := Pearson([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10})
	assert.InDelta(t, 1, r, 1e-12)
	assert.Less(t, p, 1e-6)

	r, p = Pearson([]float64{1}, []float64{2})
	assert.Equal(t, 0.0, r)
	assert.Equal(t, 1.0, p)

	r, p = Pearson([]float64{3, 3, 3}, []float64{1, 2, 3})
	assert.Equal(t, 0.0, r)
	assert.Equal(t, 1.0, p)
}

func TestPearsonDropsNaNPairs(t *testing.T) {
	r, _ := Pearson([]float64{1, math.NaN(), 3, 4}, []float64{1, 100, 3, 4})
	assert.InDelta(t, 1, r, 1e-12)
}

func TestPearsonPValueKnownValue(t *testing.T) {
	// r = 0.5 with n = 10 gives t = 1.633 on 8 df, two-sided p ~= 0.141.
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.InDelta(t, 0.141, tTestPValue(0.5, len(x)), 1e-3)
}

func TestSpearmanIsRankBased(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{1, 4, 9, 16, 1000}

	r, _ := Spearman(x, y)
	assert.InDelta(t, 1, r, 1e-12)

	pr, _ := Pearson(x, y)
	assert.Less(t, pr, 0.99)
}

func TestRanksAverageTies(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, Ranks([]float64{10, 20, 20, 30}))
}

func TestKendallTauB(t *testing.T) {
	tau, p := Kendall([]float64{1, 2, 3, 4, 5, 6}, []float64{6, 5, 4, 3, 2, 1})
	assert.InDelta(t, -1, tau, 1e-12)
	assert.Less(t, p, 0.05)

	tau, p = Kendall([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.Equal(t, 0.0, tau)
	assert.Equal(t, 1.0, p)
}

func TestDecomposeAdditiveRecoversWeeklyPattern(t *testing.T) {
	pattern := []float64{-30, -10, 0, 5, 10, 15, 10}
	x := make([]float64, 28)
	for i := range x {
		x[i] = 100 + pattern[i%7]
	}

	dec, err := DecomposeAdditive(x, 7)
	require.NoError(t, err)
	require.Len(t, dec.Seasonal, len(x))

	assert.True(t, math.IsNaN(dec.Trend[0]))
	assert.InDelta(t, 100, dec.Trend[10], 1e-9)
	for i := range x {
		assert.InDelta(t, pattern[i%7], dec.Seasonal[i], 1e-9)
	}
}

func TestDecomposeAdditiveNeedsTwoPeriods(t *testing.T) {
	_, err := DecomposeAdditive(make([]float64, 13), 7)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestDecomposeEvenPeriodUsesHalfWeights(t *testing.T) {
	x := []float64{1, 3, 1, 3, 1, 3, 1, 3}
	dec, err := DecomposeAdditive(x, 2)
	require.NoError(t, err)
	assert.InDelta(t, 2, dec.Trend[1], 1e-12)
	assert.InDelta(t, -1, dec.Seasonal[0], 1e-12)
	assert.InDelta(t, 1, dec.Seasonal[1], 1e-12)
}

func TestFitARIMAForecastsNoisyWeeklySeries(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	x := make([]float64, 70)
	for i := range x {
		x[i] = 500 + 2*float64(i) + 60*math.Sin(2*math.Pi*float64(i)/7) + rng.NormFloat64()*8
	}

	fit, err := FitARIMA(x, Order{P: 7, D: 1, Q: 1})
	require.NoError(t, err)
	require.Len(t, fit.AR, 7)
	require.Len(t, fit.MA, 1)

	forecast, err := fit.Forecast(7)
	require.NoError(t, err)
	require.Len(t, forecast, 7)
	for _, v := range forecast {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		assert.InDelta(t, 640, v, 250)
	}
}

func TestFitARIMARejectsShortSeries(t *testing.T) {
	x := make([]float64, 14)
	for i := range x {
		x[i] = float64(i)
	}
	_, err := FitARIMA(x, Order{P: 7, D: 1, Q: 1})
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestFitARIMAPureAutoregression(t *testing.T) {
	// w_t = 0.5 w_{t-1} exactly; the integrated series converges.
	w := 64.0
	x := []float64{0}
	for i := 0; i < 20; i++ {
		x = append(x, x[len(x)-1]+w)
		w *= 0.5
	}

	fit, err := FitARIMA(x, Order{P: 1, D: 1, Q: 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, fit.AR[0], 1e-6)

	next, err := fit.Forecast(1)
	require.NoError(t, err)
	assert.InDelta(t, x[len(x)-1]+w, next[0], 1e-6)
}
