package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"retailpulse/backend/internal/analytics"
	"retailpulse/backend/internal/cache"
	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/narrative"
	"retailpulse/backend/internal/store"
	"retailpulse/backend/internal/store/memory"
)

var testEnd = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

type countingRepo struct {
	store.Repository
	mu    sync.Mutex
	calls int
	fail  error
}

func (r *countingRepo) ListDailySummaries(ctx context.Context, filter store.Filter) ([]domain.DailySummaryRecord, error) {
	r.mu.Lock()
	r.calls++
	fail := r.fail
	r.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return r.Repository.ListDailySummaries(ctx, filter)
}

func (r *countingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newDemoRepo() *memory.Store {
	summaries, details := memory.GenerateDemo(memory.DemoOptions{Seed: memory.DemoSeed, End: testEnd, Days: 120})
	return memory.New(summaries, details)
}

func newTestService(repo store.Repository, opts Options) *Service {
	opts.Now = func() time.Time { return testEnd.Add(10 * time.Hour) }
	return New(repo, opts)
}

func TestTimeSeriesIsGapFilledOverRelativeWindow(t *testing.T) {
	svc := newTestService(newDemoRepo(), Options{})

	resp, err := svc.TimeSeries(context.Background(), Query{Days: 28}, "total_sales")
	if err != nil {
		t.Fatalf("time series failed: %v", err)
	}
	if len(resp.ActualData) != 28 {
		t.Fatalf("expected 28 points, got %d", len(resp.ActualData))
	}
	if resp.ActualData[27].Date != "2024-06-30" {
		t.Fatalf("expected window to end today, got %s", resp.ActualData[27].Date)
	}
	if resp.TrendType == analytics.TrendUnknown {
		t.Fatalf("expected a classified trend, got %s", resp.TrendType)
	}
}

func TestTimeSeriesWithoutRowsIsUnknown(t *testing.T) {
	svc := newTestService(memory.New(nil, nil), Options{})

	resp, err := svc.TimeSeries(context.Background(), Query{Start: "2024-01-01", End: "2024-01-31"}, "")
	if err != nil {
		t.Fatalf("time series failed: %v", err)
	}
	if resp.TrendType != analytics.TrendUnknown || resp.TrendInfo == nil || resp.TrendInfo.Message == "" {
		t.Fatalf("expected unknown trend with message, got %+v", resp)
	}
	if len(resp.ActualData) != 31 {
		t.Fatalf("expected 31 zero points, got %d", len(resp.ActualData))
	}
}

func TestChunkedLoadMatchesSingleFetch(t *testing.T) {
	repo := newDemoRepo()
	chunked := newTestService(repo, Options{ChunkDays: 3, Concurrency: 8})
	whole := newTestService(repo, Options{ChunkDays: 1000})
	rng, err := analytics.NewRange(testEnd.AddDate(0, 0, -20), testEnd)
	if err != nil {
		t.Fatalf("range: %v", err)
	}

	a, err := chunked.loadSummaries(context.Background(), rng, []string{"Uptown"})
	if err != nil {
		t.Fatalf("chunked load: %v", err)
	}
	b, err := whole.loadSummaries(context.Background(), rng, []string{"Uptown"})
	if err != nil {
		t.Fatalf("single load: %v", err)
	}
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("expected equal non-empty loads, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestLoadErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &countingRepo{Repository: newDemoRepo(), fail: boom}
	svc := newTestService(repo, Options{})

	_, err := svc.KPISummary(context.Background(), Query{Days: 30})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
}

func TestForecastIsCachedPerParameters(t *testing.T) {
	repo := &countingRepo{Repository: newDemoRepo()}
	var mu sync.Mutex
	events := map[string]int{}
	svc := newTestService(repo, Options{
		ForecastCache: cache.NewLRUForecastCache(16, time.Hour),
		ChunkDays:     1000,
		CacheObserver: func(result string) {
			mu.Lock()
			events[result]++
			mu.Unlock()
		},
	})
	q := Query{Start: "2024-04-01", End: "2024-06-30", Stores: []string{"Uptown", "Old Town"}}

	first, err := svc.Forecast(context.Background(), q, "total_sales", 14, "linear")
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	if len(first.ForecastData) != 14 || first.ForecastData[0].Date != "2024-07-01" {
		t.Fatalf("unexpected forecast data: %+v", first.ForecastData)
	}
	if first.ForecastInfo == nil || first.ForecastInfo.ForecastMethod != analytics.MethodLinear {
		t.Fatalf("expected linear forecast info, got %+v", first.ForecastInfo)
	}
	calls := repo.count()

	q.Stores = []string{"Old Town", "Uptown"}
	second, err := svc.Forecast(context.Background(), q, "total_sales", 14, "linear")
	if err != nil {
		t.Fatalf("cached forecast failed: %v", err)
	}
	if repo.count() != calls {
		t.Fatalf("expected cache hit without loading rows")
	}
	if second.ForecastInfo.AverageForecast != first.ForecastInfo.AverageForecast {
		t.Fatalf("cached forecast differs")
	}

	if _, err := svc.Forecast(context.Background(), q, "total_sales", 21, "linear"); err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	if events["miss"] != 2 || events["hit"] != 1 {
		t.Fatalf("unexpected cache events: %v", events)
	}
}

func TestForecastRejectsOutOfRangeDays(t *testing.T) {
	svc := newTestService(newDemoRepo(), Options{})
	_, err := svc.Forecast(context.Background(), Query{Days: 60}, "", 400, "")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestUnsupportedParametersAreRejected(t *testing.T) {
	svc := newTestService(newDemoRepo(), Options{})
	ctx := context.Background()

	if _, err := svc.TimeSeries(ctx, Query{}, "profit"); !errors.Is(err, analytics.ErrUnsupportedMetric) {
		t.Fatalf("expected unsupported metric, got %v", err)
	}
	if _, err := svc.Anomalies(ctx, Query{}, "", "mad", 0); !errors.Is(err, analytics.ErrUnsupportedMethod) {
		t.Fatalf("expected unsupported method, got %v", err)
	}
	for _, threshold := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := svc.Anomalies(ctx, Query{}, "", "zscore", threshold); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected invalid threshold %v to be rejected, got %v", threshold, err)
		}
	}
	if _, err := svc.Patterns(ctx, Query{}, "monthly"); !errors.Is(err, analytics.ErrUnsupportedPattern) {
		t.Fatalf("expected unsupported pattern, got %v", err)
	}
	if _, err := svc.Seasonality(ctx, Query{}, "", "yearly"); !errors.Is(err, analytics.ErrUnsupportedPeriod) {
		t.Fatalf("expected unsupported period, got %v", err)
	}
	if _, err := svc.KPISummary(ctx, Query{Start: "2024-06-10", End: "2024-06-01"}); !errors.Is(err, analytics.ErrInvalidDateRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}
	if _, err := svc.CompareStores(ctx, Query{}, " ", "ALL", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected missing store error, got %v", err)
	}
}

func TestAnalyticsOperationsOverDemoData(t *testing.T) {
	svc := newTestService(newDemoRepo(), Options{})
	ctx := context.Background()
	q := Query{Days: 90}

	anomalies, err := svc.Anomalies(ctx, q, "total_sales", "iqr", 0)
	if err != nil || len(anomalies.Data) != 90 || anomalies.Threshold != analytics.DefaultIQRThreshold {
		t.Fatalf("unexpected anomalies: %+v, %v", anomalies.Threshold, err)
	}

	corr, err := svc.Correlations(ctx, q, nil, "spearman")
	if err != nil || len(corr.Data) != 3 {
		t.Fatalf("unexpected correlations: %d, %v", len(corr.Data), err)
	}

	hourly, err := svc.Patterns(ctx, Query{Days: 14}, "hourly")
	if err != nil || len(hourly.Data) != 24 {
		t.Fatalf("unexpected hourly pattern: %v", err)
	}
	weekday, err := svc.Patterns(ctx, Query{Days: 14}, "daily")
	if err != nil || len(weekday.Data) != 7 {
		t.Fatalf("unexpected weekday pattern: %v", err)
	}

	season, err := svc.Seasonality(ctx, q, "total_sales", "weekly")
	if err != nil || len(season.SeasonalComponents) != 7 {
		t.Fatalf("unexpected seasonality: %+v, %v", season, err)
	}

	cmp, err := svc.CompareStores(ctx, Query{Days: 30, Stores: []string{"Uptown"}}, "Old Town", "all", nil)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if len(cmp.BenchmarkStores) != 3 || len(cmp.Metrics) == 0 {
		t.Fatalf("expected three benchmark stores, got %+v", cmp.BenchmarkStores)
	}

	top, err := svc.TopPerformers(ctx, Query{Days: 30}, "total_sales", 2)
	if err != nil || len(top.Performers) != 2 || top.Performers[0].Rank != 1 {
		t.Fatalf("unexpected top performers: %+v, %v", top, err)
	}
	if top.Period != "2024-06-01 ~ 2024-06-30" {
		t.Fatalf("unexpected period: %s", top.Period)
	}
}

func TestKPIAndSalesBreakdowns(t *testing.T) {
	svc := newTestService(newDemoRepo(), Options{})
	ctx := context.Background()
	q := Query{Days: 7}

	summary, err := svc.KPISummary(ctx, q)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !summary.IsTotal() || summary.TotalTransactions == 0 || summary.TotalCustomers != summary.TotalTransactions {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	trends, err := svc.KPITrends(ctx, Query{Days: 7, Stores: []string{"Uptown"}}, "transactions")
	if err != nil {
		t.Fatalf("trends failed: %v", err)
	}
	if len(trends.Data) != 7 || trends.Data[0].StoreName != "Uptown" {
		t.Fatalf("expected seven Uptown points, got %+v", trends.Data)
	}

	categories, err := svc.CategoryKPIs(ctx, q)
	if err != nil || len(categories) == 0 {
		t.Fatalf("unexpected categories: %v", err)
	}

	hourly, err := svc.HourlySales(ctx, Query{Days: 7, Stores: []string{"Uptown", "Riverside"}})
	if err != nil || len(hourly) != 3*24 {
		t.Fatalf("expected two stores plus total over 24 hours, got %d (%v)", len(hourly), err)
	}

	products, err := svc.ProductSales(ctx, Query{Days: 7, Stores: []string{"Uptown"}}, 3)
	if err != nil || len(products) != 3 {
		t.Fatalf("expected three products, got %d (%v)", len(products), err)
	}

	payments, err := svc.PaymentTypes(ctx, q)
	if err != nil || len(payments) != 3 {
		t.Fatalf("expected Card, Cash and QR, got %+v (%v)", payments, err)
	}
}

func TestAnalyzeUsesNarrator(t *testing.T) {
	svc := newTestService(newDemoRepo(), Options{Narrator: narrative.Disabled{}})
	ctx := WithActor(context.Background(), domain.Actor{Username: "viewer", Role: "viewer"})

	resp, err := svc.Analyze(ctx, domain.NarrativeRequest{ChartType: "dailySales", ChartData: []map[string]any{{"x": 1}}})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if resp.Analysis != narrative.DisabledMessage || resp.PointsUsed != 1 {
		t.Fatalf("unexpected narrative: %+v", resp)
	}

	if _, err := svc.Analyze(ctx, domain.NarrativeRequest{}); !errors.Is(err, narrative.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestActorContextRoundTrip(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatalf("expected no actor on a bare context")
	}
	ctx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		t.Fatalf("expected admin actor, got %+v", actor)
	}
}
