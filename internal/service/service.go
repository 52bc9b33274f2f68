package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"retailpulse/backend/internal/analytics"
	"retailpulse/backend/internal/cache"
	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/narrative"
	"retailpulse/backend/internal/store"
)

var ErrInvalidArgument = errors.New("invalid argument")

const (
	defaultTrendDays     = 90
	defaultAnomalyDays   = 60
	defaultPatternDays   = 30
	defaultReportDays    = 30
	defaultForecastDays  = 30
	maxForecastDays      = 365
	defaultProductLimit  = 20
	maxProductLimit      = 500
	defaultTopPerformers = 5
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Query is the common filter of every analytics call. Start/End win over
// Days; an empty Stores slice means every store.
type Query struct {
	Start  string
	End    string
	Days   int
	Stores []string
}

func (q Query) stores() []string {
	seen := make(map[string]struct{}, len(q.Stores))
	out := make([]string, 0, len(q.Stores))
	for _, name := range q.Stores {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

type Options struct {
	ForecastCache cache.ForecastCache
	ForecastTTL   time.Duration
	Narrator      narrative.Generator
	Categorizer   analytics.Categorizer
	ChunkDays     int
	Concurrency   int
	Logger        *zap.Logger
	// CacheObserver is told "hit", "miss" or "error" for every forecast
	// cache lookup.
	CacheObserver func(result string)
	Now           func() time.Time
}

type Service struct {
	repo          store.Repository
	forecaster    *analytics.Forecaster
	forecasts     cache.ForecastCache
	forecastTTL   time.Duration
	narrator      narrative.Generator
	categorizer   analytics.Categorizer
	chunkDays     int
	concurrency   int
	logger        *zap.Logger
	tracer        trace.Tracer
	cacheObserver func(string)
	now           func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.ForecastCache == nil {
		opts.ForecastCache = cache.NoopForecastCache{}
	}
	if opts.ForecastTTL <= 0 {
		opts.ForecastTTL = time.Hour
	}
	if opts.Narrator == nil {
		opts.Narrator = narrative.Disabled{}
	}
	if opts.Categorizer == nil {
		opts.Categorizer = analytics.FirstTokenCategorizer{}
	}
	if opts.ChunkDays <= 0 {
		opts.ChunkDays = 7
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.CacheObserver == nil {
		opts.CacheObserver = func(string) {}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:          repo,
		forecaster:    analytics.NewForecaster(),
		forecasts:     opts.ForecastCache,
		forecastTTL:   opts.ForecastTTL,
		narrator:      opts.Narrator,
		categorizer:   opts.Categorizer,
		chunkDays:     opts.ChunkDays,
		concurrency:   opts.Concurrency,
		logger:        opts.Logger,
		tracer:        otel.Tracer("retailpulse/backend/internal/service"),
		cacheObserver: opts.CacheObserver,
		now:           opts.Now,
	}
}

func (s *Service) startSpan(ctx context.Context, name string, q Query) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "service."+name, trace.WithAttributes(
		attribute.String("query.start", q.Start),
		attribute.String("query.end", q.End),
		attribute.Int("query.days", q.Days),
		attribute.StringSlice("query.stores", q.stores()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) resolve(q Query, defaultDays int) (analytics.Range, error) {
	return analytics.ResolveRange(analytics.RangeRequest{Start: q.Start, End: q.End, Days: q.Days}, defaultDays, s.now().UTC())
}

// loadChunked fetches rng in fixed-size windows concurrently and stitches
// the pieces back in date order.
func loadChunked[T any](ctx context.Context, s *Service, rng analytics.Range, stores []string, fetch func(context.Context, store.Filter) ([]T, error)) ([]T, error) {
	chunks := rng.Split(s.chunkDays)
	parts := make([][]T, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			rows, err := fetch(gctx, store.Filter{From: chunk.Start, To: chunk.End, Stores: stores})
			if err != nil {
				return fmt.Errorf("load %s: %w", chunk, err)
			}
			parts[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]T, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

func (s *Service) loadSummaries(ctx context.Context, rng analytics.Range, stores []string) ([]domain.DailySummaryRecord, error) {
	startedAt := time.Now()
	rows, err := loadChunked(ctx, s, rng, stores, s.repo.ListDailySummaries)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("summaries loaded",
		zap.Stringer("range", rng),
		zap.Int("rows", len(rows)),
		zap.Duration("took", time.Since(startedAt)),
	)
	return rows, nil
}

func (s *Service) loadTransactions(ctx context.Context, rng analytics.Range, stores []string) ([]domain.TransactionRecord, error) {
	startedAt := time.Now()
	rows, err := loadChunked(ctx, s, rng, stores, s.repo.ListTransactions)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("transactions loaded",
		zap.Stringer("range", rng),
		zap.Int("rows", len(rows)),
		zap.Duration("took", time.Since(startedAt)),
	)
	return rows, nil
}

func (s *Service) ListStores(ctx context.Context) ([]string, error) {
	return s.repo.ListStores(ctx)
}

func (s *Service) TimeSeries(ctx context.Context, q Query, metric string) (resp domain.TimeSeriesResponse, err error) {
	ctx, span := s.startSpan(ctx, "TimeSeries", q)
	defer func() { endSpan(span, err) }()

	m, err := analytics.ParseMetric(metric)
	if err != nil {
		return resp, err
	}
	rng, err := s.resolve(q, defaultTrendDays)
	if err != nil {
		return resp, err
	}
	rows, err := s.loadSummaries(ctx, rng, q.stores())
	if err != nil {
		return resp, err
	}

	resp = analytics.TimeSeries(m, analytics.DailySeries(rng, rows, m))
	if len(rows) == 0 {
		resp.TrendType = analytics.TrendUnknown
		resp.TrendInfo = &domain.TrendInfo{Message: "No sales data in the selected range."}
	}
	return resp, nil
}

func (s *Service) Forecast(ctx context.Context, q Query, metric string, days int, method string) (resp domain.ForecastResponse, err error) {
	ctx, span := s.startSpan(ctx, "Forecast", q)
	defer func() { endSpan(span, err) }()

	m, err := analytics.ParseMetric(metric)
	if err != nil {
		return resp, err
	}
	fm, err := analytics.ParseForecastMethod(method)
	if err != nil {
		return resp, err
	}
	if days == 0 {
		days = defaultForecastDays
	}
	if days < 1 || days > maxForecastDays {
		return resp, fmt.Errorf("%w: forecast_days must be between 1 and %d", ErrInvalidArgument, maxForecastDays)
	}
	rng, err := s.resolve(q, defaultTrendDays)
	if err != nil {
		return resp, err
	}
	stores := q.stores()
	span.SetAttributes(attribute.Int("forecast.days", days), attribute.String("forecast.method", string(fm)))

	key := cache.ForecastKey(cache.ForecastParams{
		Start:  rng.Start.Format(domain.DateLayout),
		End:    rng.End.Format(domain.DateLayout),
		Days:   days,
		Stores: stores,
		Metric: string(m),
		Method: string(fm),
	})
	cached, ok, cacheErr := s.forecasts.Get(ctx, key)
	switch {
	case cacheErr != nil:
		s.cacheObserver("error")
		s.logger.Warn("forecast cache read failed", zap.String("key", key), zap.Error(cacheErr))
	case ok && cached != nil:
		s.cacheObserver("hit")
		span.SetAttributes(attribute.Bool("forecast.cached", true))
		return *cached, nil
	default:
		s.cacheObserver("miss")
	}

	rows, err := s.loadSummaries(ctx, rng, stores)
	if err != nil {
		return resp, err
	}
	series := analytics.DailySeries(rng, rows, m)
	result := s.forecaster.Forecast(series, days, fm)
	if result.FallbackReason != nil {
		s.logger.Warn("arima fit failed, used linear projection",
			zap.String("metric", string(m)),
			zap.Int("history", series.Len()),
			zap.Error(result.FallbackReason),
		)
	}

	resp = domain.ForecastResponse{
		Metric:         string(m),
		HistoricalData: series.Points(),
		ForecastData:   result.Points,
		ForecastInfo:   result.Info,
		Error:          result.Err,
	}
	if err := s.forecasts.Set(ctx, key, &resp, s.forecastTTL); err != nil {
		s.logger.Warn("forecast cache write failed", zap.String("key", key), zap.Error(err))
	}
	return resp, nil
}

func (s *Service) Seasonality(ctx context.Context, q Query, metric string, periodType string) (resp domain.SeasonalityResponse, err error) {
	ctx, span := s.startSpan(ctx, "Seasonality", q)
	defer func() { endSpan(span, err) }()

	m, err := analytics.ParseMetric(metric)
	if err != nil {
		return resp, err
	}
	period, err := analytics.ParsePeriodType(periodType)
	if err != nil {
		return resp, err
	}
	rng, err := s.resolve(q, defaultTrendDays)
	if err != nil {
		return resp, err
	}
	rows, err := s.loadSummaries(ctx, rng, q.stores())
	if err != nil {
		return resp, err
	}
	return analytics.AnalyzeSeasonality(analytics.ObservedSeries(rows, m), period), nil
}

func (s *Service) Anomalies(ctx context.Context, q Query, metric string, method string, threshold float64) (resp domain.AnomalyResponse, err error) {
	ctx, span := s.startSpan(ctx, "Anomalies", q)
	defer func() { endSpan(span, err) }()

	m, err := analytics.ParseMetric(metric)
	if err != nil {
		return resp, err
	}
	am, err := analytics.ParseAnomalyMethod(method)
	if err != nil {
		return resp, err
	}
	if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return resp, fmt.Errorf("%w: threshold must be a finite, non-negative number", ErrInvalidArgument)
	}
	rng, err := s.resolve(q, defaultAnomalyDays)
	if err != nil {
		return resp, err
	}
	rows, err := s.loadSummaries(ctx, rng, q.stores())
	if err != nil {
		return resp, err
	}
	resp = analytics.DetectAnomalies(m, analytics.DailySeries(rng, rows, m), am, threshold)
	span.SetAttributes(attribute.Int("anomaly.count", resp.AnomalyCount))
	return resp, nil
}

func (s *Service) Correlations(ctx context.Context, q Query, variables []string, method string) (resp domain.CorrelationResponse, err error) {
	ctx, span := s.startSpan(ctx, "Correlations", q)
	defer func() { endSpan(span, err) }()

	vars, err := analytics.ParseCorrelationVariables(variables)
	if err != nil {
		return resp, err
	}
	cm, err := analytics.ParseCorrelationMethod(method)
	if err != nil {
		return resp, err
	}
	rng, err := s.resolve(q, defaultTrendDays)
	if err != nil {
		return resp, err
	}
	rows, err := s.loadSummaries(ctx, rng, q.stores())
	if err != nil {
		return resp, err
	}
	_, days := analytics.ObservedDays(rows)
	return analytics.AnalyzeCorrelations(days, vars, cm), nil
}

func (s *Service) Patterns(ctx context.Context, q Query, patternType string) (resp domain.PatternResponse, err error) {
	ctx, span := s.startSpan(ctx, "Patterns", q)
	defer func() { endSpan(span, err) }()

	pt, err := analytics.ParsePatternType(patternType)
	if err != nil {
		return resp, err
	}
	rng, err := s.resolve(q, defaultPatternDays)
	if err != nil {
		return resp, err
	}

	if pt == analytics.PatternHourly {
		rows, err := s.loadTransactions(ctx, rng, q.stores())
		if err != nil {
			return resp, err
		}
		return analytics.HourlyPattern(rows), nil
	}
	rows, err := s.loadSummaries(ctx, rng, q.stores())
	if err != nil {
		return resp, err
	}
	return analytics.WeekdayPattern(rows), nil
}

// CompareStores benchmarks storeName against a cohort of the other stores.
// The query's store filter is ignored; every store is a candidate.
func (s *Service) CompareStores(ctx context.Context, q Query, storeName string, benchmark string, metrics []string) (resp domain.StoreComparisonResponse, err error) {
	ctx, span := s.startSpan(ctx, "CompareStores", q)
	defer func() { endSpan(span, err) }()

	storeName = strings.TrimSpace(storeName)
	if storeName == "" {
		return resp, fmt.Errorf("%w: store_name is required", ErrInvalidArgument)
	}
	kind, err := analytics.ParseBenchmarkType(benchmark)
	if err != nil {
		return resp, err
	}
	parsed := make([]analytics.StoreMetric, 0, len(metrics))
	for _, raw := range metrics {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		m, err := analytics.ParseStoreMetric(raw)
		if err != nil {
			return resp, err
		}
		parsed = append(parsed, m)
	}
	rng, err := s.resolve(q, defaultReportDays)
	if err != nil {
		return resp, err
	}
	rows, err := s.loadSummaries(ctx, rng, nil)
	if err != nil {
		return resp, err
	}
	return analytics.CompareStore(analytics.StoreBaselines(rows), storeName, kind, parsed), nil
}

func (s *Service) TopPerformers(ctx context.Context, q Query, metric string, limit int) (resp domain.TopPerformerResponse, err error) {
	ctx, span := s.startSpan(ctx, "TopPerformers", q)
	defer func() { endSpan(span, err) }()

	m, err := analytics.ParseStoreMetric(metric)
	if err != nil {
		return resp, err
	}
	if limit <= 0 {
		limit = defaultTopPerformers
	}
	rng, err := s.resolve(q, defaultReportDays)
	if err != nil {
		return resp, err
	}
	rows, err := s.loadSummaries(ctx, rng, q.stores())
	if err != nil {
		return resp, err
	}
	return domain.TopPerformerResponse{
		MetricName:        string(m),
		MetricDisplayName: m.DisplayName(),
		Period:            rng.String(),
		Performers:        analytics.TopPerformers(analytics.StoreBaselines(rows), m, limit),
	}, nil
}

func (s *Service) KPISummary(ctx context.Context, q Query) (resp domain.KPISummary, err error) {
	ctx, span := s.startSpan(ctx, "KPISummary", q)
	defer func() { endSpan(span, err) }()

	rng, err := s.resolve(q, defaultReportDays)
	if err != nil {
		return resp, err
	}
	stores := q.stores()
	rows, err := s.loadSummaries(ctx, rng, stores)
	if err != nil {
		return resp, err
	}
	return analytics.Summarize(rows, rng, stores), nil
}

func (s *Service) KPITrends(ctx context.Context, q Query, metric string) (resp domain.KPITrend, err error) {
	ctx, span := s.startSpan(ctx, "KPITrends", q)
	defer func() { endSpan(span, err) }()

	m, err := analytics.ParseMetric(metric)
	if err != nil {
		return resp, err
	}
	rng, err := s.resolve(q, defaultReportDays)
	if err != nil {
		return resp, err
	}
	stores := q.stores()
	rows, err := s.loadSummaries(ctx, rng, stores)
	if err != nil {
		return resp, err
	}
	return analytics.KPITrends(rows, rng, stores, m), nil
}

func (s *Service) CategoryKPIs(ctx context.Context, q Query) (resp []domain.CategoryKPI, err error) {
	ctx, span := s.startSpan(ctx, "CategoryKPIs", q)
	defer func() { endSpan(span, err) }()

	rng, err := s.resolve(q, defaultReportDays)
	if err != nil {
		return nil, err
	}
	stores := q.stores()
	rows, err := s.loadTransactions(ctx, rng, stores)
	if err != nil {
		return nil, err
	}
	return analytics.CategoryBreakdown(rows, stores, s.categorizer), nil
}

func (s *Service) HourlySales(ctx context.Context, q Query) (resp []domain.HourlySales, err error) {
	ctx, span := s.startSpan(ctx, "HourlySales", q)
	defer func() { endSpan(span, err) }()

	rng, err := s.resolve(q, defaultReportDays)
	if err != nil {
		return nil, err
	}
	stores := q.stores()
	rows, err := s.loadTransactions(ctx, rng, stores)
	if err != nil {
		return nil, err
	}
	return analytics.HourlyBreakdown(rows, stores), nil
}

func (s *Service) ProductSales(ctx context.Context, q Query, limit int) (resp []domain.ProductSales, err error) {
	ctx, span := s.startSpan(ctx, "ProductSales", q)
	defer func() { endSpan(span, err) }()

	if limit <= 0 {
		limit = defaultProductLimit
	}
	if limit > maxProductLimit {
		limit = maxProductLimit
	}
	rng, err := s.resolve(q, defaultReportDays)
	if err != nil {
		return nil, err
	}
	stores := q.stores()
	rows, err := s.loadTransactions(ctx, rng, stores)
	if err != nil {
		return nil, err
	}
	return analytics.ProductBreakdown(rows, stores, limit), nil
}

func (s *Service) PaymentTypes(ctx context.Context, q Query) (resp []domain.PaymentTypeSales, err error) {
	ctx, span := s.startSpan(ctx, "PaymentTypes", q)
	defer func() { endSpan(span, err) }()

	rng, err := s.resolve(q, defaultReportDays)
	if err != nil {
		return nil, err
	}
	rows, err := s.loadSummaries(ctx, rng, q.stores())
	if err != nil {
		return nil, err
	}
	return analytics.PaymentBreakdown(rows), nil
}

func (s *Service) Analyze(ctx context.Context, req domain.NarrativeRequest) (resp domain.NarrativeResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "service.Analyze", trace.WithAttributes(
		attribute.String("chart.type", req.ChartType),
		attribute.Int("chart.points", len(req.ChartData)),
	))
	defer func() { endSpan(span, err) }()

	if actor, ok := ActorFromContext(ctx); ok {
		s.logger.Info("narrative requested", zap.String("actor", actor.Username), zap.String("chart_type", req.ChartType))
	}
	return s.narrator.Analyze(ctx, req)
}
