package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/stats"
)

const (
	quartileShare      = 0.25
	similarShare       = 0.3
	ticketWeight       = 0.7
	discountWeight     = 0.3
	notableDifferenceP = 10.0
)

// StoreBaselines computes the per-store metrics used for comparison,
// ordered by store name.
func StoreBaselines(rows []domain.DailySummaryRecord) []domain.StoreMetrics {
	type acc struct {
		sales, discount float64
		receipts        map[string]struct{}
		days            map[time.Time]struct{}
	}
	byStore := make(map[string]*acc)
	for _, row := range rows {
		a, ok := byStore[row.StoreName]
		if !ok {
			a = &acc{receipts: map[string]struct{}{}, days: map[time.Time]struct{}{}}
			byStore[row.StoreName] = a
		}
		a.sales += row.TotalSales
		a.discount += row.TotalDiscount
		a.receipts[row.ReceiptNumber] = struct{}{}
		a.days[Day(row.Date)] = struct{}{}
	}

	out := make([]domain.StoreMetrics, 0, len(byStore))
	for name, a := range byStore {
		count := len(a.receipts)
		out = append(out, domain.StoreMetrics{
			StoreName:        name,
			TotalSales:       a.sales,
			TransactionCount: count,
			AvgTransaction:   stats.SafeDiv(a.sales, float64(count)),
			DiscountRate:     stats.SafeDiv(a.discount, a.sales+a.discount) * 100,
			AvgDailySales:    stats.SafeDiv(a.sales, float64(len(a.days))),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreName < out[j].StoreName })
	return out
}

// StoreMetricValue reads one metric off a baseline.
func StoreMetricValue(m domain.StoreMetrics, metric StoreMetric) float64 {
	switch metric {
	case StoreTransactionCount:
		return float64(m.TransactionCount)
	case StoreAvgTransaction:
		return m.AvgTransaction
	case StoreDiscountRate:
		return m.DiscountRate
	case StoreAvgDailySales:
		return m.AvgDailySales
	default:
		return m.TotalSales
	}
}

// cohortSize mirrors round-half-to-even with a floor of one store.
func cohortSize(n int, share float64) int {
	return max(1, int(math.RoundToEven(share*float64(n))))
}

// SelectBenchmark picks the comparison cohort for target among all.
func SelectBenchmark(all []domain.StoreMetrics, target domain.StoreMetrics, kind BenchmarkType) []domain.StoreMetrics {
	others := make([]domain.StoreMetrics, 0, len(all))
	for _, m := range all {
		if m.StoreName != target.StoreName {
			others = append(others, m)
		}
	}
	if len(others) == 0 {
		return others
	}

	switch kind {
	case BenchmarkTop25:
		sort.SliceStable(others, func(i, j int) bool { return others[i].TotalSales > others[j].TotalSales })
		return others[:min(len(others), cohortSize(len(others), quartileShare))]
	case BenchmarkBottom25:
		sort.SliceStable(others, func(i, j int) bool { return others[i].TotalSales < others[j].TotalSales })
		return others[:min(len(others), cohortSize(len(others), quartileShare))]
	case BenchmarkSimilar:
		ticketBase := math.Max(target.AvgTransaction, 1)
		discountBase := math.Max(target.DiscountRate, 1)
		score := func(m domain.StoreMetrics) float64 {
			return ticketWeight*math.Abs(m.AvgTransaction-target.AvgTransaction)/ticketBase +
				discountWeight*math.Abs(m.DiscountRate-target.DiscountRate)/discountBase
		}
		sort.SliceStable(others, func(i, j int) bool { return score(others[i]) < score(others[j]) })
		n := max(1, int(similarShare*float64(len(others))))
		return others[:min(len(others), n)]
	default:
		return others
	}
}

// CompareStore measures target against the selected benchmark cohort.
func CompareStore(all []domain.StoreMetrics, target string, kind BenchmarkType, metrics []StoreMetric) domain.StoreComparisonResponse {
	if len(metrics) == 0 {
		metrics = DefaultComparisonMetrics
	}
	resp := domain.StoreComparisonResponse{
		StoreName:       target,
		BenchmarkType:   string(kind),
		BenchmarkStores: []string{},
		Metrics:         []domain.ComparisonMetric{},
		Insights:        []string{},
	}

	var (
		self  domain.StoreMetrics
		found bool
	)
	for _, m := range all {
		if m.StoreName == target {
			self, found = m, true
			break
		}
	}
	if !found {
		resp.Insights = append(resp.Insights, fmt.Sprintf("No sales data found for store %q in the selected period.", target))
		return resp
	}

	cohort := SelectBenchmark(all, self, kind)
	for _, m := range cohort {
		resp.BenchmarkStores = append(resp.BenchmarkStores, m.StoreName)
	}
	if len(cohort) == 0 {
		for _, metric := range metrics {
			resp.Metrics = append(resp.Metrics, domain.ComparisonMetric{
				MetricName:  string(metric),
				DisplayName: metric.DisplayName(),
				StoreValue:  StoreMetricValue(self, metric),
			})
		}
		resp.Insights = append(resp.Insights, "Not enough stores are available for comparison.")
		return resp
	}

	for _, metric := range metrics {
		values := make([]float64, len(cohort))
		for i, m := range cohort {
			values[i] = StoreMetricValue(m, metric)
		}
		own := StoreMetricValue(self, metric)
		bench := stats.Mean(values)
		diff := own - bench
		positive := diff > 0
		if metric.LowerIsBetter() {
			positive = diff < 0
		}
		resp.Metrics = append(resp.Metrics, domain.ComparisonMetric{
			MetricName:        string(metric),
			DisplayName:       metric.DisplayName(),
			StoreValue:        own,
			BenchmarkValue:    bench,
			Difference:        diff,
			PercentDifference: stats.SafeDiv(diff, bench) * 100,
			IsPositive:        positive,
		})
	}
	resp.Insights = comparisonInsights(resp.Metrics)
	return resp
}

func comparisonInsights(metrics []domain.ComparisonMetric) []string {
	insights := make([]string, 0, len(metrics)+1)
	var better, worse int
	for _, m := range metrics {
		lowerIsBetter := StoreMetric(m.MetricName).LowerIsBetter()
		switch {
		case m.Difference > 0 && !lowerIsBetter, m.Difference < 0 && lowerIsBetter:
			better++
		case m.Difference != 0:
			worse++
		}
		if math.Abs(m.PercentDifference) < notableDifferenceP {
			continue
		}
		direction := "higher"
		if m.PercentDifference < 0 {
			direction = "lower"
		}
		verdict := "needs improvement"
		if m.IsPositive {
			verdict = "good"
		}
		insights = append(insights, fmt.Sprintf("%s is %s %s than the benchmark (%s).",
			m.DisplayName, formatPercent(math.Abs(m.PercentDifference)), direction, verdict))
	}

	switch {
	case better > worse:
		insights = append(insights, "Overall performance is better than the benchmark stores.")
	case better < worse:
		insights = append(insights, "Overall performance needs improvement relative to the benchmark stores.")
	default:
		insights = append(insights, "Overall performance is on par with the benchmark stores.")
	}
	return insights
}

// TopPerformers ranks stores by metric. Discount rate ranks ascending.
func TopPerformers(all []domain.StoreMetrics, metric StoreMetric, limit int) []domain.TopPerformer {
	ranked := append([]domain.StoreMetrics(nil), all...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := StoreMetricValue(ranked[i], metric), StoreMetricValue(ranked[j], metric)
		if metric.LowerIsBetter() {
			return a < b
		}
		return a > b
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]domain.TopPerformer, len(ranked))
	for i, m := range ranked {
		out[i] = domain.TopPerformer{StoreName: m.StoreName, MetricValue: StoreMetricValue(m, metric), Rank: i + 1}
	}
	return out
}
