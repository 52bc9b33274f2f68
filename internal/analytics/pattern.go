package analytics

import (
	"fmt"
	"strconv"
	"time"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/stats"
)

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// weekdayIndex maps time.Weekday to a Monday-first index.
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

const minPatternBuckets = 3

type timeBand struct {
	name      string
	from, to  int
	threshold float64
}

func (b timeBand) contains(hour int) bool {
	if b.from < b.to {
		return hour >= b.from && hour < b.to
	}
	return hour >= b.from || hour < b.to
}

var hourlyBands = []timeBand{
	{name: "lunch (11 AM - 3 PM)", from: 11, to: 15, threshold: 40},
	{name: "dinner (5 PM - 9 PM)", from: 17, to: 21, threshold: 40},
	{name: "morning (6 AM - 11 AM)", from: 6, to: 11, threshold: 25},
	{name: "late night (9 PM - 6 AM)", from: 21, to: 6, threshold: 15},
}

// HourlyPattern buckets receipts by the hour of their payment. Line items
// are folded into their receipt first so a receipt counts once.
func HourlyPattern(rows []domain.TransactionRecord) domain.PatternResponse {
	type receipt struct {
		hour  int
		at    time.Time
		sales float64
	}
	receipts := make(map[string]*receipt)
	for _, row := range rows {
		key := receiptKey(row.StoreName, row.ReceiptNumber)
		r, ok := receipts[key]
		if !ok {
			receipts[key] = &receipt{hour: row.PaymentTime.Hour(), at: row.PaymentTime, sales: row.TotalSales}
			continue
		}
		r.sales += row.TotalSales
		if row.PaymentTime.Before(r.at) {
			r.at = row.PaymentTime
			r.hour = row.PaymentTime.Hour()
		}
	}

	var sales [24]float64
	var counts [24]int
	for _, r := range receipts {
		sales[r.hour] += r.sales
		counts[r.hour]++
	}

	data := make([]domain.PatternPoint, 24)
	for h := range data {
		data[h] = domain.PatternPoint{Index: h, Label: strconv.Itoa(h), Value: sales[h], Transactions: counts[h]}
	}
	return domain.PatternResponse{
		PatternType: string(PatternHourly),
		Data:        data,
		Insights:    hourlyInsights(data),
	}
}

func hourlyInsights(data []domain.PatternPoint) []string {
	active := make([]domain.PatternPoint, 0, len(data))
	var total float64
	for _, p := range data {
		if p.Transactions > 0 {
			active = append(active, p)
			total += p.Value
		}
	}
	if len(active) < minPatternBuckets {
		return []string{"Not enough data for hourly pattern analysis."}
	}

	peak := active[0]
	for _, p := range active[1:] {
		if p.Value > peak.Value {
			peak = p
		}
	}
	insights := []string{fmt.Sprintf("Sales peak at %s.", clockLabel(peak.Index))}

	var low *domain.PatternPoint
	for i := range active {
		p := active[i]
		if p.Index < 7 || p.Index > 22 {
			continue
		}
		if low == nil || p.Value < low.Value {
			low = &active[i]
		}
	}
	if low != nil {
		insights = append(insights, fmt.Sprintf("Sales are lowest at %s during business hours.", clockLabel(low.Index)))
	}

	triggered := false
	for _, band := range hourlyBands {
		var sum float64
		for _, p := range active {
			if band.contains(p.Index) {
				sum += p.Value
			}
		}
		share := stats.SafeDiv(sum, total) * 100
		if share > band.threshold {
			triggered = true
			insights = append(insights, fmt.Sprintf("The %s band accounts for %s of sales.", band.name, formatPercent(share)))
		}
	}
	if !triggered {
		insights = append(insights, "Sales are fairly evenly distributed across the day.")
	}
	return insights
}

// WeekdayPattern buckets summary rows by weekday, Monday first.
func WeekdayPattern(rows []domain.DailySummaryRecord) domain.PatternResponse {
	var sales [7]float64
	var seen [7]map[string]struct{}
	for _, row := range rows {
		i := weekdayIndex(row.Date.Weekday())
		sales[i] += row.TotalSales
		if seen[i] == nil {
			seen[i] = make(map[string]struct{})
		}
		seen[i][receiptKey(row.StoreName, row.ReceiptNumber)] = struct{}{}
	}

	data := make([]domain.PatternPoint, 7)
	for i := range data {
		data[i] = domain.PatternPoint{Index: i, Label: weekdayLabels[i], Value: sales[i], Transactions: len(seen[i])}
	}
	return domain.PatternResponse{
		PatternType: string(PatternDaily),
		Data:        data,
		Insights:    weekdayInsights(data),
	}
}

func weekdayInsights(data []domain.PatternPoint) []string {
	active := make([]domain.PatternPoint, 0, len(data))
	for _, p := range data {
		if p.Transactions > 0 {
			active = append(active, p)
		}
	}
	if len(active) < minPatternBuckets {
		return []string{"Not enough data for weekday pattern analysis."}
	}

	peak, trough := active[0], active[0]
	values := make([]float64, 0, len(active))
	var weekdaySum, weekendSum float64
	var weekdayN, weekendN int
	for _, p := range active {
		if p.Value > peak.Value {
			peak = p
		}
		if p.Value < trough.Value {
			trough = p
		}
		values = append(values, p.Value)
		if p.Index >= 5 {
			weekendSum += p.Value
			weekendN++
		} else {
			weekdaySum += p.Value
			weekdayN++
		}
	}

	insights := []string{
		fmt.Sprintf("%s has the highest sales and %s the lowest.", peak.Label, trough.Label),
	}

	weekdayAvg := stats.SafeDiv(weekdaySum, float64(weekdayN))
	weekendAvg := stats.SafeDiv(weekendSum, float64(weekendN))
	switch {
	case weekendAvg > weekdayAvg*1.3:
		insights = append(insights, fmt.Sprintf("Weekend average sales (%s) are well above the weekday average (%s).", formatAmount(weekendAvg), formatAmount(weekdayAvg)))
	case weekdayAvg > weekendAvg*1.3:
		insights = append(insights, fmt.Sprintf("Weekday average sales (%s) are well above the weekend average (%s).", formatAmount(weekdayAvg), formatAmount(weekendAvg)))
	default:
		insights = append(insights, "Weekday and weekend sales are similar.")
	}

	cv := stats.SafeDiv(stats.SampleStdDev(values), stats.Mean(values)) * 100
	switch {
	case cv > 30:
		insights = append(insights, fmt.Sprintf("Sales vary strongly by weekday (CV %s).", formatPercent(cv)))
	case cv < 15:
		insights = append(insights, fmt.Sprintf("Sales are stable across weekdays (CV %s).", formatPercent(cv)))
	}
	return insights
}
