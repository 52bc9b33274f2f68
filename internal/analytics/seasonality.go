package analytics

import (
	"fmt"
	"time"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/stats"
)

const (
	minWeeklyPoints  = 14
	minMonthlyPoints = 60
	minMonthsForPeak = 6
)

// AnalyzeSeasonality measures how much each weekday or month deviates from
// the mean of all period means. s holds observed days only.
func AnalyzeSeasonality(s Series, period PeriodType) domain.SeasonalityResponse {
	resp := domain.SeasonalityResponse{
		PeriodType:         string(period),
		SeasonalComponents: []domain.SeasonalComponent{},
		Insights:           []string{},
	}

	minPoints, buckets, label, key := minWeeklyPoints, 7, weekdayLabel, weekdayKey
	if period == PeriodMonthly {
		minPoints, buckets, label, key = minMonthlyPoints, 12, monthLabel, monthKey
	}
	if s.Len() < minPoints {
		resp.Insights = append(resp.Insights, fmt.Sprintf("At least %d days of data are required for %s seasonality analysis.", minPoints, period))
		return resp
	}

	sums := make([]float64, buckets)
	counts := make([]int, buckets)
	for i, d := range s.Dates {
		k := key(d)
		sums[k] += s.Values[i]
		counts[k]++
	}

	present := make([]int, 0, buckets)
	means := make([]float64, 0, buckets)
	for k := 0; k < buckets; k++ {
		if counts[k] == 0 {
			continue
		}
		present = append(present, k)
		means = append(means, sums[k]/float64(counts[k]))
	}

	overall := stats.Mean(means)
	deviations := make([]float64, len(means))
	for i, m := range means {
		if overall != 0 {
			deviations[i] = m/overall - 1
		}
		resp.SeasonalComponents = append(resp.SeasonalComponents, domain.SeasonalComponent{
			Period: label(present[i]),
			Value:  deviations[i],
		})
	}
	resp.Strength = stats.SampleStdDev(deviations)

	if period == PeriodMonthly {
		resp.Insights = monthlyInsights(resp.SeasonalComponents, resp.Strength)
	} else {
		resp.Insights = weeklyInsights(resp.SeasonalComponents, resp.Strength)
	}
	return resp
}

func weekdayKey(d time.Time) int { return weekdayIndex(d.Weekday()) }
func weekdayLabel(k int) string { return weekdayLabels[k] }
func monthKey(d time.Time) int { return int(d.Month()) - 1 }
func monthLabel(k int) string { return time.Month(k + 1).String()[:3] }

func extremes(components []domain.SeasonalComponent) (domain.SeasonalComponent, domain.SeasonalComponent) {
	peak, trough := components[0], components[0]
	for _, c := range components[1:] {
		if c.Value > peak.Value {
			peak = c
		}
		if c.Value < trough.Value {
			trough = c
		}
	}
	return peak, trough
}

func weeklyInsights(components []domain.SeasonalComponent, strength float64) []string {
	peak, trough := extremes(components)
	insights := []string{
		fmt.Sprintf("%s sales run %s above the weekly average.", peak.Period, formatPercent(peak.Value*100)),
		fmt.Sprintf("%s sales run %s below the weekly average.", trough.Period, formatPercent(-trough.Value*100)),
	}
	switch {
	case strength > 0.3:
		insights = append(insights, "Sales vary greatly by weekday; adjust staffing and inventory per weekday.")
	case strength > 0.15:
		insights = append(insights, "There is a clear weekly sales pattern.")
	default:
		insights = append(insights, "Sales show low variability across weekdays.")
	}
	return insights
}

func monthlyInsights(components []domain.SeasonalComponent, strength float64) []string {
	if len(components) < minMonthsForPeak {
		return []string{fmt.Sprintf("At least %d months of data are required to identify monthly peaks.", minMonthsForPeak)}
	}
	peak, trough := extremes(components)
	insights := []string{
		fmt.Sprintf("%s is the strongest month at %s above average.", peak.Period, formatPercent(peak.Value*100)),
		fmt.Sprintf("%s is the weakest month at %s below average.", trough.Period, formatPercent(-trough.Value*100)),
	}
	switch {
	case strength > 0.25:
		insights = append(insights, "Sales vary greatly by month; plan inventory and promotions around the season.")
	case strength > 0.1:
		insights = append(insights, "There is a clear monthly sales pattern.")
	default:
		insights = append(insights, "Sales show low variability across months.")
	}
	return insights
}
