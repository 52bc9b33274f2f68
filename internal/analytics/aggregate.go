package analytics

import (
	"sort"
	"time"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/stats"
)

// DayTotals holds the additive sums for one group of summary rows.
type DayTotals struct {
	TotalSales    float64
	ActualSales   float64
	TotalDiscount float64
	Receipts      int
}

// Value resolves a metric against the totals. Average ticket is zero when
// no receipt was seen.
func (d DayTotals) Value(m Metric) float64 {
	switch m {
	case MetricActualSales:
		return d.ActualSales
	case MetricTotalDiscount:
		return d.TotalDiscount
	case MetricTransactions:
		return float64(d.Receipts)
	case MetricAvgTransaction:
		return stats.SafeDiv(d.TotalSales, float64(d.Receipts))
	default:
		return d.TotalSales
	}
}

// Series is an ascending sequence of dated values.
type Series struct {
	Dates  []time.Time
	Values []float64
}

func (s Series) Len() int { return len(s.Values) }

func (s Series) Points() []domain.SeriesPoint {
	out := make([]domain.SeriesPoint, len(s.Values))
	for i := range s.Values {
		out[i] = domain.SeriesPoint{Date: s.Dates[i].Format(domain.DateLayout), Value: s.Values[i]}
	}
	return out
}

func receiptKey(store, receipt string) string {
	return store + "\x00" + receipt
}

// TotalsByDay groups summary rows by calendar day. Transactions count
// distinct (store, receipt) pairs.
func TotalsByDay(rows []domain.DailySummaryRecord) map[time.Time]DayTotals {
	out := make(map[time.Time]DayTotals)
	seen := make(map[time.Time]map[string]struct{})
	for _, row := range rows {
		day := Day(row.Date)
		totals := out[day]
		totals.TotalSales += row.TotalSales
		totals.ActualSales += row.ActualSales
		totals.TotalDiscount += row.TotalDiscount

		receipts, ok := seen[day]
		if !ok {
			receipts = make(map[string]struct{})
			seen[day] = receipts
		}
		key := receiptKey(row.StoreName, row.ReceiptNumber)
		if _, dup := receipts[key]; !dup {
			receipts[key] = struct{}{}
			totals.Receipts++
		}
		out[day] = totals
	}
	return out
}

// Totals sums every row into a single group.
func Totals(rows []domain.DailySummaryRecord) DayTotals {
	var totals DayTotals
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		totals.TotalSales += row.TotalSales
		totals.ActualSales += row.ActualSales
		totals.TotalDiscount += row.TotalDiscount
		key := receiptKey(row.StoreName, row.ReceiptNumber)
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			totals.Receipts++
		}
	}
	return totals
}

// DailySeries produces one value per calendar day of rng. Days without rows
// resolve to zero.
func DailySeries(rng Range, rows []domain.DailySummaryRecord, metric Metric) Series {
	byDay := TotalsByDay(rows)
	days := rng.Days()
	values := make([]float64, len(days))
	for i, day := range days {
		values[i] = byDay[day].Value(metric)
	}
	return Series{Dates: days, Values: values}
}

// ObservedDays returns only the days that have rows, ascending.
func ObservedDays(rows []domain.DailySummaryRecord) ([]time.Time, []DayTotals) {
	byDay := TotalsByDay(rows)
	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	totals := make([]DayTotals, len(days))
	for i, day := range days {
		totals[i] = byDay[day]
	}
	return days, totals
}

// ObservedSeries is the metric over days that have rows.
func ObservedSeries(rows []domain.DailySummaryRecord, metric Metric) Series {
	days, totals := ObservedDays(rows)
	values := make([]float64, len(totals))
	for i, t := range totals {
		values[i] = t.Value(metric)
	}
	return Series{Dates: days, Values: values}
}

// GroupByScope splits rows by store. A single requested store yields just
// that store; otherwise every store present is returned in name order
// followed by the Total scope over all rows.
func GroupByScope[T any](rows []T, storeOf func(T) string, requested []string) []domain.Aggregate[[]T] {
	if len(requested) == 1 {
		name := requested[0]
		matched := make([]T, 0, len(rows))
		for _, row := range rows {
			if storeOf(row) == name {
				matched = append(matched, row)
			}
		}
		return []domain.Aggregate[[]T]{{Scope: domain.PerStore(name), Metrics: matched}}
	}

	byStore := make(map[string][]T)
	for _, row := range rows {
		name := storeOf(row)
		byStore[name] = append(byStore[name], row)
	}
	names := make([]string, 0, len(byStore))
	for name := range byStore {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domain.Aggregate[[]T], 0, len(names)+1)
	for _, name := range names {
		out = append(out, domain.Aggregate[[]T]{Scope: domain.PerStore(name), Metrics: byStore[name]})
	}
	return append(out, domain.Aggregate[[]T]{Scope: domain.Total(), Metrics: rows})
}

func summaryStore(r domain.DailySummaryRecord) string { return r.StoreName }

func transactionStore(r domain.TransactionRecord) string { return r.StoreName }

// ScopeOf is the scope used for single-value aggregates over a filter.
func ScopeOf(requested []string) domain.Scope {
	if len(requested) == 1 {
		return domain.PerStore(requested[0])
	}
	return domain.Total()
}
