package analytics

import (
	"math"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/stats"
)

// DetectAnomalies flags outliers in s. A non-positive or non-finite
// threshold selects the method default. Points whose score reaches the
// threshold are flagged.
func DetectAnomalies(metric Metric, s Series, method AnomalyMethod, threshold float64) domain.AnomalyResponse {
	if !(threshold > 0) || math.IsInf(threshold, 0) {
		threshold = method.DefaultThreshold()
	}
	resp := domain.AnomalyResponse{
		Metric:    string(metric),
		Method:    string(method),
		Threshold: threshold,
		Data:      []domain.AnomalyPoint{},
	}
	if s.Len() == 0 {
		return resp
	}

	switch method {
	case AnomalyIQR:
		resp.Data, resp.LowerBound, resp.UpperBound = iqrAnomalies(s, threshold)
	default:
		resp.Data = zScoreAnomalies(s, threshold)
	}
	for _, p := range resp.Data {
		if p.IsAnomaly {
			resp.AnomalyCount++
		}
	}
	return resp
}

func zScoreAnomalies(s Series, threshold float64) []domain.AnomalyPoint {
	mean := stats.Mean(s.Values)
	std := stats.PopStdDev(s.Values)
	if std == 0 {
		std = 1
	}

	out := make([]domain.AnomalyPoint, s.Len())
	for i, v := range s.Values {
		z := (v - mean) / std
		out[i] = domain.AnomalyPoint{
			Date:          s.Dates[i].Format(domain.DateLayout),
			Value:         v,
			ExpectedValue: mean,
			Score:         z,
			IsAnomaly:     math.Abs(z) >= threshold,
		}
	}
	return out
}

func iqrAnomalies(s Series, threshold float64) ([]domain.AnomalyPoint, *float64, *float64) {
	q1 := stats.Percentile(s.Values, 25)
	q3 := stats.Percentile(s.Values, 75)
	iqr := q3 - q1
	lower := q1 - threshold*iqr
	upper := q3 + threshold*iqr
	expected := (q1 + q3) / 2

	out := make([]domain.AnomalyPoint, s.Len())
	for i, v := range s.Values {
		var score float64
		switch {
		case v < lower:
			score = stats.SafeDiv(v-lower, iqr)
		case v > upper:
			score = stats.SafeDiv(v-upper, iqr)
		}
		out[i] = domain.AnomalyPoint{
			Date:          s.Dates[i].Format(domain.DateLayout),
			Value:         v,
			ExpectedValue: expected,
			Score:         score,
			IsAnomaly:     v < lower || v > upper,
		}
	}
	return out, &lower, &upper
}
