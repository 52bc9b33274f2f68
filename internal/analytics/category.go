package analytics

import (
	"sort"
	"strings"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/stats"
)

// OtherCategory is assigned when a product name yields no category.
const OtherCategory = "Other"

// Categorizer maps a product name to its category.
type Categorizer interface {
	Categorize(productName string) string
}

// FirstTokenCategorizer uses the first whitespace-delimited word of the
// product name.
type FirstTokenCategorizer struct{}

func (FirstTokenCategorizer) Categorize(productName string) string {
	fields := strings.Fields(productName)
	if len(fields) == 0 {
		return OtherCategory
	}
	return fields[0]
}

// LookupCategorizer resolves exact product names from a table and defers to
// Fallback for anything else.
type LookupCategorizer struct {
	Table    map[string]string
	Fallback Categorizer
}

func (c LookupCategorizer) Categorize(productName string) string {
	if category, ok := c.Table[strings.TrimSpace(productName)]; ok && category != "" {
		return category
	}
	if c.Fallback != nil {
		return c.Fallback.Categorize(productName)
	}
	return OtherCategory
}

// CategoryBreakdown aggregates line items per category within each scope,
// ordered by sales descending.
func CategoryBreakdown(rows []domain.TransactionRecord, stores []string, categorizer Categorizer) []domain.CategoryKPI {
	if categorizer == nil {
		categorizer = FirstTokenCategorizer{}
	}
	type acc struct {
		products map[string]struct{}
		sales    float64
		prices   []float64
	}

	out := []domain.CategoryKPI{}
	for _, group := range GroupByScope(rows, transactionStore, stores) {
		byCategory := make(map[string]*acc)
		var scopeTotal float64
		for _, row := range group.Metrics {
			name := categorizer.Categorize(row.ProductName)
			a, ok := byCategory[name]
			if !ok {
				a = &acc{products: map[string]struct{}{}}
				byCategory[name] = a
			}
			a.products[row.ProductName] = struct{}{}
			a.sales += row.TotalSales
			a.prices = append(a.prices, row.Price)
			scopeTotal += row.TotalSales
		}

		scoped := make([]domain.CategoryKPI, 0, len(byCategory))
		for name, a := range byCategory {
			scoped = append(scoped, domain.CategoryKPI{
				Scope:           group.Scope,
				Category:        name,
				ProductCount:    len(a.products),
				TotalSales:      a.sales,
				SalesPercentage: stats.SafeDiv(a.sales, scopeTotal) * 100,
				AveragePrice:    stats.Mean(a.prices),
			})
		}
		sort.Slice(scoped, func(i, j int) bool {
			if scoped[i].TotalSales != scoped[j].TotalSales {
				return scoped[i].TotalSales > scoped[j].TotalSales
			}
			return scoped[i].Category < scoped[j].Category
		})
		out = append(out, scoped...)
	}
	return out
}
