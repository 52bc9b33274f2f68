package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/stats"
)

// CorrelationVariable is a per-day quantity eligible for correlation.
type CorrelationVariable string

const (
	VarTotalSales       CorrelationVariable = "total_sales"
	VarActualSales      CorrelationVariable = "actual_sales"
	VarDiscountAmount   CorrelationVariable = "discount_amount"
	VarTransactionCount CorrelationVariable = "transaction_count"
	VarAvgTransaction   CorrelationVariable = "avg_transaction"
)

var DefaultCorrelationVariables = []CorrelationVariable{VarTotalSales, VarTransactionCount, VarDiscountAmount}

const (
	significanceLevel = 0.05
	strongCorrelation = 0.7
	mediumCorrelation = 0.4
)

// ParseCorrelationVariables validates names and drops duplicates. An empty
// list selects the defaults.
func ParseCorrelationVariables(raw []string) ([]CorrelationVariable, error) {
	out := make([]CorrelationVariable, 0, len(raw))
	seen := make(map[CorrelationVariable]struct{}, len(raw))
	for _, name := range raw {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		v := CorrelationVariable(name)
		switch v {
		case VarTotalSales, VarActualSales, VarDiscountAmount, VarTransactionCount, VarAvgTransaction:
		default:
			return nil, fmt.Errorf("%w: correlation variable %q", ErrUnsupportedMetric, name)
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return append([]CorrelationVariable(nil), DefaultCorrelationVariables...), nil
	}
	return out, nil
}

func (v CorrelationVariable) metric() Metric {
	switch v {
	case VarActualSales:
		return MetricActualSales
	case VarDiscountAmount:
		return MetricTotalDiscount
	case VarTransactionCount:
		return MetricTransactions
	case VarAvgTransaction:
		return MetricAvgTransaction
	default:
		return MetricTotalSales
	}
}

func (v CorrelationVariable) label() string {
	return strings.ReplaceAll(string(v), "_", " ")
}

func coefficient(method CorrelationMethod, x, y []float64) (float64, float64) {
	switch method {
	case CorrelationSpearman:
		return stats.Spearman(x, y)
	case CorrelationKendall:
		return stats.Kendall(x, y)
	default:
		return stats.Pearson(x, y)
	}
}

// AnalyzeCorrelations correlates the selected variables over the observed
// days. Pairs are sorted by descending absolute coefficient. A pair with
// fewer than two observations reports r=0 and p=1.
func AnalyzeCorrelations(days []DayTotals, vars []CorrelationVariable, method CorrelationMethod) domain.CorrelationResponse {
	resp := domain.CorrelationResponse{
		Method:   string(method),
		Data:     []domain.CorrelationPoint{},
		Matrix:   map[string]map[string]float64{},
		Insights: []string{},
	}
	if len(days) == 0 || len(vars) < 2 {
		resp.Insights = append(resp.Insights, "Not enough data for correlation analysis.")
		return resp
	}

	columns := make([][]float64, len(vars))
	for i, v := range vars {
		m := v.metric()
		col := make([]float64, len(days))
		for j, d := range days {
			col[j] = d.Value(m)
		}
		columns[i] = col
	}

	for i, v := range vars {
		diag := 0.0
		if stats.PopStdDev(columns[i]) > 0 {
			diag = 1
		}
		resp.Matrix[string(v)] = map[string]float64{string(v): diag}
	}

	for i := 0; i < len(vars); i++ {
		for j := i + 1; j < len(vars); j++ {
			r, p := coefficient(method, columns[i], columns[j])
			if math.IsNaN(r) {
				r, p = 0, 1
			}
			resp.Matrix[string(vars[i])][string(vars[j])] = r
			resp.Matrix[string(vars[j])][string(vars[i])] = r
			resp.Data = append(resp.Data, domain.CorrelationPoint{
				Variable1:    string(vars[i]),
				Variable2:    string(vars[j]),
				Correlation:  r,
				PValue:       p,
				Significance: p < significanceLevel,
			})
		}
	}
	sort.SliceStable(resp.Data, func(a, b int) bool {
		return math.Abs(resp.Data[a].Correlation) > math.Abs(resp.Data[b].Correlation)
	})

	resp.Insights = correlationInsights(resp.Data)
	return resp
}

func correlationInsights(points []domain.CorrelationPoint) []string {
	insights := make([]string, 0, len(points)+1)
	significant := 0
	for _, p := range points {
		if !p.Significance {
			continue
		}
		significant++
		direction := "positive"
		if p.Correlation < 0 {
			direction = "negative"
		}
		a := upperFirst(CorrelationVariable(p.Variable1).label())
		b := CorrelationVariable(p.Variable2).label()
		switch abs := math.Abs(p.Correlation); {
		case abs >= strongCorrelation:
			insights = append(insights, fmt.Sprintf("%s and %s show a strong %s correlation (r=%.2f).", a, b, direction, p.Correlation))
		case abs >= mediumCorrelation:
			insights = append(insights, fmt.Sprintf("%s and %s show a moderate %s correlation (r=%.2f).", a, b, direction, p.Correlation))
		}
	}

	switch {
	case significant == 0:
		insights = append(insights, "No statistically significant correlation was found between the selected variables.")
	case significant < len(points):
		insights = append(insights, "Some variable pairs show no significant relationship.")
	}
	return insights
}
