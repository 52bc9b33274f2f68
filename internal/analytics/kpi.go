package analytics

import (
	"math"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/stats"
)

const (
	KPITrendFlat       = "flat"
	KPITrendUp         = "up"
	KPITrendStrongUp   = "strong_up"
	KPITrendDown       = "down"
	KPITrendStrongDown = "strong_down"
	KPITrendUnknown    = "unknown"
)

// Summarize computes the headline KPIs over rng. Average daily sales divide
// by every calendar day in the window, not just days with sales.
func Summarize(rows []domain.DailySummaryRecord, rng Range, stores []string) domain.KPISummary {
	totals := Totals(rows)
	return domain.KPISummary{
		Scope:                   ScopeOf(stores),
		TotalSales:              totals.TotalSales,
		AverageDailySales:       stats.SafeDiv(totals.TotalSales, float64(rng.Len())),
		TotalTransactions:       totals.Receipts,
		AverageTransactionValue: stats.SafeDiv(totals.TotalSales, float64(totals.Receipts)),
		TotalCustomers:          totals.Receipts,
		TotalDiscountAmount:     totals.TotalDiscount,
		DiscountRate:            stats.SafeDiv(totals.TotalDiscount, totals.TotalSales+totals.TotalDiscount) * 100,
	}
}

// KPITrends emits a gap-filled series per scope. Trend info describes the
// single requested store, or the Total scope otherwise.
func KPITrends(rows []domain.DailySummaryRecord, rng Range, stores []string, metric Metric) domain.KPITrend {
	resp := domain.KPITrend{Metric: string(metric), Data: []domain.KPITrendPoint{}}
	if len(rows) == 0 {
		scope := ScopeOf(stores)
		for _, day := range rng.Days() {
			resp.Data = append(resp.Data, domain.KPITrendPoint{Scope: scope, Date: day.Format(domain.DateLayout)})
		}
		resp.TrendInfo = domain.KPITrendInfo{Trend: KPITrendFlat}
		return resp
	}

	var headline []float64
	for _, group := range GroupByScope(rows, summaryStore, stores) {
		series := DailySeries(rng, group.Metrics, metric)
		for i, day := range series.Dates {
			resp.Data = append(resp.Data, domain.KPITrendPoint{
				Scope: group.Scope,
				Date:  day.Format(domain.DateLayout),
				Value: series.Values[i],
			})
		}
		if group.Scope.IsTotal() || len(stores) == 1 {
			headline = series.Values
		}
	}
	resp.TrendInfo = DescribeKPITrend(headline)
	return resp
}

// DescribeKPITrend grades the slope of values against their mean.
func DescribeKPITrend(values []float64) domain.KPITrendInfo {
	if len(values) == 0 {
		return domain.KPITrendInfo{Trend: KPITrendUnknown}
	}
	mean := stats.Mean(values)
	first := values[0]
	if first == 0 {
		first = 0.01
	}
	last := values[len(values)-1]

	var slope float64
	if line, err := stats.FitLine(values); err == nil {
		slope = line.Slope
	}

	trend := KPITrendFlat
	switch {
	case slope == 0 || math.Abs(slope) < mean*0.01:
	case slope > 0 && slope > mean*0.1:
		trend = KPITrendStrongUp
	case slope > 0:
		trend = KPITrendUp
	case math.Abs(slope) > mean*0.1:
		trend = KPITrendStrongDown
	default:
		trend = KPITrendDown
	}

	return domain.KPITrendInfo{
		Trend:      trend,
		GrowthRate: (last - first) / first * 100,
		Slope:      slope,
		Mean:       mean,
		Std:        stats.PopStdDev(values),
		Min:        stats.Min(values),
		Max:        stats.Max(values),
	}
}
