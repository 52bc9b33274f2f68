package analytics

import (
	"fmt"
	"math"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/stats"
)

const (
	MethodARIMA  = "ARIMA"
	MethodLinear = "LinearRegression"
)

// Forecaster extends a daily series. The zero value is not usable; build it
// with NewForecaster.
type Forecaster struct {
	Order      stats.Order
	MinPoints  int
	BandSigmas float64
}

func NewForecaster() *Forecaster {
	return &Forecaster{
		Order:      stats.Order{P: 7, D: 1, Q: 1},
		MinPoints:  14,
		BandSigmas: 2,
	}
}

// ForecastResult carries the projected points plus why the primary model
// was skipped, if it was.
type ForecastResult struct {
	Points         []domain.ForecastPoint
	Info           *domain.ForecastInfo
	Err            string
	FallbackReason error
}

// Forecast projects days values past the last date of s.
func (f *Forecaster) Forecast(s Series, days int, method ForecastMethod) ForecastResult {
	if days <= 0 {
		return ForecastResult{Points: []domain.ForecastPoint{}, Err: "forecast_days must be positive"}
	}
	if s.Len() < f.MinPoints {
		return ForecastResult{
			Points: []domain.ForecastPoint{},
			Err:    fmt.Sprintf("At least %d days of history are required to forecast.", f.MinPoints),
		}
	}

	var (
		values   []float64
		used     string
		fallback error
	)
	if method != ForecastLinear {
		v, err := f.arima(s.Values, days)
		if err == nil {
			values, used = v, MethodARIMA
		} else {
			fallback = err
		}
	}
	if values == nil {
		v, err := linearProjection(s.Values, days)
		if err != nil {
			return ForecastResult{
				Points:         []domain.ForecastPoint{},
				Err:            fmt.Sprintf("forecast failed: %v", err),
				FallbackReason: fallback,
			}
		}
		values, used = v, MethodLinear
	}

	band := f.BandSigmas * stats.PopStdDev(s.Values)
	last := s.Dates[s.Len()-1]
	points := make([]domain.ForecastPoint, days)
	var sum float64
	for i, v := range values {
		v = math.Max(v, 0)
		sum += v
		points[i] = domain.ForecastPoint{
			Date:       last.AddDate(0, 0, i+1).Format(domain.DateLayout),
			Value:      v,
			UpperBound: v + band,
			LowerBound: math.Max(v-band, 0),
		}
	}

	return ForecastResult{
		Points: points,
		Info: &domain.ForecastInfo{
			ForecastStart:   points[0].Date,
			ForecastEnd:     points[days-1].Date,
			ForecastDays:    days,
			AverageForecast: sum / float64(days),
			ForecastMethod:  used,
		},
		FallbackReason: fallback,
	}
}

func (f *Forecaster) arima(values []float64, days int) ([]float64, error) {
	fit, err := stats.FitARIMA(values, f.Order)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", f.Order, err)
	}
	return fit.Forecast(days)
}

// linearProjection continues the least-squares line fitted over the index.
func linearProjection(values []float64, days int) ([]float64, error) {
	line, err := stats.FitLine(values)
	if err != nil {
		return nil, err
	}
	n := len(values)
	out := make([]float64, days)
	for i := range out {
		out[i] = line.At(float64(n + i))
	}
	return out, nil
}
