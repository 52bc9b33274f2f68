package analytics

import (
	"sort"
	"strings"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/stats"
)

// UnknownPaymentType labels rows with no recorded payment type.
const UnknownPaymentType = "Unknown"

// ProductBreakdown ranks products by sales within each scope and keeps the
// first limit of each. A non-positive limit keeps everything.
func ProductBreakdown(rows []domain.TransactionRecord, stores []string, limit int) []domain.ProductSales {
	type key struct{ name, code string }

	out := []domain.ProductSales{}
	for _, group := range GroupByScope(rows, transactionStore, stores) {
		byProduct := make(map[key]*domain.ProductSales)
		for _, row := range group.Metrics {
			k := key{row.ProductName, row.ProductCode}
			p, ok := byProduct[k]
			if !ok {
				p = &domain.ProductSales{Scope: group.Scope, ProductName: row.ProductName, ProductCode: row.ProductCode}
				byProduct[k] = p
			}
			p.Quantity += row.Quantity
			p.TotalSales += row.TotalSales
			p.DiscountAmount += row.DiscountAmount
			p.ActualSales += row.ActualSales
		}

		scoped := make([]domain.ProductSales, 0, len(byProduct))
		for _, p := range byProduct {
			scoped = append(scoped, *p)
		}
		sort.Slice(scoped, func(i, j int) bool {
			if scoped[i].TotalSales != scoped[j].TotalSales {
				return scoped[i].TotalSales > scoped[j].TotalSales
			}
			return scoped[i].ProductName < scoped[j].ProductName
		})
		if limit > 0 && len(scoped) > limit {
			scoped = scoped[:limit]
		}
		out = append(out, scoped...)
	}
	return out
}

// HourlyBreakdown returns 24 buckets per scope. Transactions count distinct
// receipts paid within the hour.
func HourlyBreakdown(rows []domain.TransactionRecord, stores []string) []domain.HourlySales {
	out := []domain.HourlySales{}
	for _, group := range GroupByScope(rows, transactionStore, stores) {
		var buckets [24]domain.HourlySales
		var receipts [24]map[string]struct{}
		for _, row := range group.Metrics {
			h := row.PaymentTime.Hour()
			buckets[h].TotalSales += row.TotalSales
			buckets[h].ActualSales += row.ActualSales
			if receipts[h] == nil {
				receipts[h] = make(map[string]struct{})
			}
			receipts[h][receiptKey(row.StoreName, row.ReceiptNumber)] = struct{}{}
		}
		for h := range buckets {
			b := buckets[h]
			b.Scope = group.Scope
			b.Hour = h
			b.Transactions = len(receipts[h])
			out = append(out, b)
		}
	}
	return out
}

// PaymentBreakdown shares sales by payment type, largest first.
func PaymentBreakdown(rows []domain.DailySummaryRecord) []domain.PaymentTypeSales {
	type acc struct {
		sales    float64
		receipts map[string]struct{}
	}
	byType := make(map[string]*acc)
	var total float64
	for _, row := range rows {
		name := strings.TrimSpace(row.PaymentType)
		if name == "" {
			name = UnknownPaymentType
		}
		a, ok := byType[name]
		if !ok {
			a = &acc{receipts: map[string]struct{}{}}
			byType[name] = a
		}
		a.sales += row.TotalSales
		a.receipts[receiptKey(row.StoreName, row.ReceiptNumber)] = struct{}{}
		total += row.TotalSales
	}

	out := make([]domain.PaymentTypeSales, 0, len(byType))
	for name, a := range byType {
		out = append(out, domain.PaymentTypeSales{
			PaymentType:      name,
			TransactionCount: len(a.receipts),
			TotalSales:       a.sales,
			Percentage:       stats.SafeDiv(a.sales, total) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSales != out[j].TotalSales {
			return out[i].TotalSales > out[j].TotalSales
		}
		return out[i].PaymentType < out[j].PaymentType
	})
	return out
}
