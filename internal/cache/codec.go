package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"retailpulse/backend/internal/domain"
)

// forecastFormat is bumped whenever ForecastResponse changes shape so older
// shared entries read as misses instead of half-decoded responses.
const forecastFormat = 1

var ErrUnknownFormat = errors.New("cached forecast has an unknown format")

type forecastEnvelope struct {
	Format   int                      `json:"format"`
	CachedAt time.Time                `json:"cached_at"`
	Forecast *domain.ForecastResponse `json:"forecast"`
}

func encodeForecast(value *domain.ForecastResponse, cachedAt time.Time) ([]byte, error) {
	return json.Marshal(forecastEnvelope{Format: forecastFormat, CachedAt: cachedAt.UTC(), Forecast: value})
}

func decodeForecast(raw []byte) (*domain.ForecastResponse, error) {
	var env forecastEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	if env.Format != forecastFormat || env.Forecast == nil {
		return nil, fmt.Errorf("%w: format %d", ErrUnknownFormat, env.Format)
	}
	return env.Forecast, nil
}
