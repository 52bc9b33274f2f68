package cache

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"retailpulse/backend/internal/domain"
)

type ForecastCache interface {
	Get(ctx context.Context, key string) (*domain.ForecastResponse, bool, error)
	Set(ctx context.Context, key string, value *domain.ForecastResponse, ttl time.Duration) error
}

type NoopForecastCache struct{}

func (NoopForecastCache) Get(_ context.Context, _ string) (*domain.ForecastResponse, bool, error) {
	return nil, false, nil
}

func (NoopForecastCache) Set(_ context.Context, _ string, _ *domain.ForecastResponse, _ time.Duration) error {
	return nil
}

// ForecastParams identifies a forecast request. Store order does not matter.
type ForecastParams struct {
	Start  string
	End    string
	Days   int
	Stores []string
	Metric string
	Method string
}

func ForecastKey(p ForecastParams) string {
	stores := append([]string(nil), p.Stores...)
	sort.Strings(stores)

	parts := []string{
		p.Start,
		p.End,
		strconv.Itoa(p.Days),
		strings.Join(stores, ","),
		p.Metric,
		p.Method,
	}
	sum := xxhash.Sum64String(strings.Join(parts, "|"))
	return "retailpulse:forecast:" + strconv.FormatUint(sum, 16)
}

// Layered reads through a local cache before a shared one and backfills the
// local layer on remote hits. Local failures are logged and never hide a
// remote hit.
type Layered struct {
	Local  ForecastCache
	Remote ForecastCache
	Logger *zap.Logger
}

func (l Layered) log() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l Layered) Get(ctx context.Context, key string) (*domain.ForecastResponse, bool, error) {
	value, ok, err := l.Local.Get(ctx, key)
	switch {
	case err != nil:
		l.log().Warn("local forecast cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		return value, true, nil
	}

	value, ok, err = l.Remote.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := l.Local.Set(ctx, key, value, 0); err != nil {
		l.log().Warn("local forecast cache backfill failed", zap.String("key", key), zap.Error(err))
	}
	return value, true, nil
}

func (l Layered) Set(ctx context.Context, key string, value *domain.ForecastResponse, ttl time.Duration) error {
	if err := l.Local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return l.Remote.Set(ctx, key, value, ttl)
}
