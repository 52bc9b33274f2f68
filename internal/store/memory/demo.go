package memory

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"retailpulse/backend/internal/domain"
)

// DemoOptions controls the synthetic dataset. The same options always
// produce the same rows.
type DemoOptions struct {
	Seed uint64
	End  time.Time
	Days int
}

type demoStore struct {
	name     string
	receipts int
	ticket   float64
}

type demoProduct struct {
	code  string
	name  string
	price float64
}

var demoStores = []demoStore{
	{name: "Harbor Point", receipts: 62, ticket: 1.15},
	{name: "Old Town", receipts: 38, ticket: 0.95},
	{name: "Riverside", receipts: 47, ticket: 1.0},
	{name: "Uptown", receipts: 55, ticket: 1.3},
}

var demoProducts = []demoProduct{
	{code: "CF-01", name: "Coffee Latte", price: 4.5},
	{code: "CF-02", name: "Coffee Americano", price: 3.2},
	{code: "CF-03", name: "Coffee Mocha", price: 4.9},
	{code: "TE-01", name: "Tea Jasmine", price: 2.8},
	{code: "TE-02", name: "Tea Matcha Latte", price: 4.6},
	{code: "BK-01", name: "Bakery Croissant", price: 3.1},
	{code: "BK-02", name: "Bakery Banana Bread", price: 3.6},
	{code: "SN-01", name: "Snack Granola Bar", price: 2.2},
	{code: "SN-02", name: "Snack Sea Salt Chips", price: 1.9},
	{code: "MS-01", name: "Meal Chicken Wrap", price: 7.8},
	{code: "MS-02", name: "Meal Garden Salad", price: 8.4},
}

var demoPaymentTypes = []string{"Card", "Card", "Card", "Cash", "QR", "QR"}

// hourWeights shapes receipts across the trading day, 07:00 to 22:00.
var hourWeights = [24]float64{
	7: 0.6, 8: 1.2, 9: 1.0, 10: 0.8, 11: 1.3, 12: 2.2, 13: 1.9, 14: 0.9,
	15: 0.7, 16: 0.8, 17: 1.2, 18: 1.6, 19: 1.5, 20: 0.9, 21: 0.5, 22: 0.2,
}

var weekdayLift = map[time.Weekday]float64{
	time.Monday: 0.9, time.Tuesday: 0.92, time.Wednesday: 0.97, time.Thursday: 1.0,
	time.Friday: 1.12, time.Saturday: 1.35, time.Sunday: 1.25,
}

// GenerateDemo builds receipt summaries and their line items for every
// demo store across opts.Days days ending on opts.End.
func GenerateDemo(opts DemoOptions) ([]domain.DailySummaryRecord, []domain.TransactionRecord) {
	if opts.Days <= 0 {
		opts.Days = 365
	}
	if opts.End.IsZero() {
		opts.End = time.Now().UTC()
	}
	end := time.Date(opts.End.Year(), opts.End.Month(), opts.End.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -(opts.Days - 1))
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	summaries := make([]domain.DailySummaryRecord, 0, opts.Days*len(demoStores)*50)
	details := make([]domain.TransactionRecord, 0, opts.Days*len(demoStores)*100)

	for d := 0; d < opts.Days; d++ {
		day := start.AddDate(0, 0, d)
		growth := 1 + 0.15*float64(d)/float64(opts.Days)
		for si, st := range demoStores {
			receipts := int(math.Round(float64(st.receipts) * weekdayLift[day.Weekday()] * growth * (0.85 + 0.3*rng.Float64())))
			for r := 0; r < receipts; r++ {
				receipt := fmt.Sprintf("S%d-%s-%04d", si+1, day.Format("20060102"), r+1)
				paidAt := day.Add(time.Duration(pickHour(rng))*time.Hour + time.Duration(rng.IntN(60))*time.Minute)
				payment := demoPaymentTypes[rng.IntN(len(demoPaymentTypes))]
				discountRate := 0.0
				if rng.Float64() < 0.12 {
					discountRate = 0.1
				}

				var total, discount float64
				lines := 1 + rng.IntN(3)
				for l := 0; l < lines; l++ {
					p := demoProducts[rng.IntN(len(demoProducts))]
					qty := 1 + rng.IntN(2)
					price := round2(p.price * st.ticket)
					gross := round2(price * float64(qty))
					off := round2(gross * discountRate)
					total += gross
					discount += off
					details = append(details, domain.TransactionRecord{
						Date:           day,
						StoreName:      st.name,
						ReceiptNumber:  receipt,
						PaymentType:    payment,
						PaymentTime:    paidAt,
						ProductCode:    p.code,
						ProductName:    p.name,
						Quantity:       qty,
						TotalSales:     gross,
						DiscountAmount: off,
						ActualSales:    round2(gross - off),
						Price:          price,
					})
				}
				summaries = append(summaries, domain.DailySummaryRecord{
					Date:          day,
					StoreName:     st.name,
					ReceiptNumber: receipt,
					PaymentTime:   paidAt,
					PaymentType:   payment,
					TotalSales:    round2(total),
					TotalDiscount: round2(discount),
					ActualSales:   round2(total - discount),
				})
			}
		}
	}
	return summaries, details
}

func pickHour(rng *rand.Rand) int {
	var sum float64
	for _, w := range hourWeights {
		sum += w
	}
	target := rng.Float64() * sum
	for h, w := range hourWeights {
		if w == 0 {
			continue
		}
		if target < w {
			return h
		}
		target -= w
	}
	return 12
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
