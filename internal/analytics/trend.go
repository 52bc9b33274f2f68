package analytics

import (
	"fmt"
	"math"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/stats"
)

const (
	TrendUnknown    = "unknown"
	TrendFlat       = "flat"
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendSeasonal   = "seasonal"
)

const (
	minTrendPoints     = 7
	minSeasonalPoints  = 14
	weeklyPeriod       = 7
	seasonalThreshold  = 0.2
	flatToleranceRatio = 0.1
)

// ClassifyTrend fits a line over the series index and labels the series.
// Series of two weeks or more are also checked for a weekly cycle, which
// overrides the linear label when strong enough.
func ClassifyTrend(values []float64) (string, *domain.TrendInfo) {
	if len(values) < minTrendPoints {
		return TrendUnknown, &domain.TrendInfo{
			Message: fmt.Sprintf("At least %d daily points are required to classify a trend.", minTrendPoints),
		}
	}

	line, err := stats.FitLine(values)
	if err != nil {
		return TrendUnknown, &domain.TrendInfo{Message: err.Error()}
	}
	n := len(values)
	start := line.At(0)
	end := line.At(float64(n - 1))
	mean := stats.Mean(values)

	info := &domain.TrendInfo{
		Slope:         line.Slope,
		Intercept:     line.Intercept,
		StartValue:    start,
		EndValue:      end,
		ChangePercent: stats.SafeDiv(end-start, start) * 100,
	}

	trend := TrendDecreasing
	switch {
	case end == start || math.Abs(end-start) < flatToleranceRatio*mean:
		trend = TrendFlat
	case end > start:
		trend = TrendIncreasing
	}

	if n >= minSeasonalPoints {
		if strength, err := weeklyStrength(values); err == nil && strength > seasonalThreshold {
			trend = TrendSeasonal
			info.SeasonalityStrength = &strength
			info.Period = weeklyPeriod
			info.PeriodType = string(PeriodWeekly)
		}
	}
	return trend, info
}

// weeklyStrength compares the spread of the weekly component with the
// spread of the mean-removed series.
func weeklyStrength(values []float64) (float64, error) {
	dec, err := stats.DecomposeAdditive(values, weeklyPeriod)
	if err != nil {
		return 0, err
	}
	mean := stats.Mean(values)
	centered := make([]float64, len(values))
	for i, v := range values {
		centered[i] = v - mean
	}
	den := stats.PopStdDev(centered)
	if den == 0 {
		return 0, stats.ErrInsufficientData
	}
	strength := stats.PopStdDev(dec.Seasonal) / den
	if math.IsNaN(strength) || math.IsInf(strength, 0) {
		return 0, stats.ErrNonFinite
	}
	return strength, nil
}

// TimeSeries builds the trends payload for a gap-filled series.
func TimeSeries(metric Metric, s Series) domain.TimeSeriesResponse {
	resp := domain.TimeSeriesResponse{
		Metric:     string(metric),
		ActualData: s.Points(),
		TrendType:  TrendUnknown,
	}
	resp.TrendType, resp.TrendInfo = ClassifyTrend(s.Values)
	return resp
}
