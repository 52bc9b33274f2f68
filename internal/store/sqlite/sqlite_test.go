package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"retailpulse/backend/internal/analytics"
	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/store"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sales.db"), zaptest.NewLogger(t))
	if err != nil {
		t.Skipf("sqlite driver unavailable: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestLoadAndFilter(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	paid := day.Add(19*time.Hour + 15*time.Minute)

	summaries := []domain.DailySummaryRecord{
		{Date: day, StoreName: "Harbor", ReceiptNumber: "1", PaymentTime: paid, PaymentType: "Card", TotalSales: 30, TotalDiscount: 2, ActualSales: 28},
		{Date: day.AddDate(0, 0, 1), StoreName: "Uptown", ReceiptNumber: "1", TotalSales: 10, ActualSales: 10},
		{Date: day.AddDate(0, 0, 9), StoreName: "Harbor", ReceiptNumber: "2", TotalSales: 99, ActualSales: 99},
	}
	details := []domain.TransactionRecord{
		{Date: day, StoreName: "Harbor", ReceiptNumber: "1", PaymentTime: paid, ProductName: "Coffee Latte", ProductCode: "C-1", Quantity: 2, TotalSales: 30, Price: 15},
	}
	require.NoError(t, s.Load(ctx, summaries, details))
	require.NoError(t, s.Load(ctx, summaries[:1], nil), "duplicate summaries are ignored")

	got, err := s.ListDailySummaries(ctx, store.Filter{From: day, To: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].PaymentTime.Equal(paid))
	assert.Equal(t, "Card", got[0].PaymentType)

	got, err = s.ListDailySummaries(ctx, store.Filter{From: day, To: day.AddDate(0, 0, 30), Stores: []string{"Harbor"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, "Harbor", r.StoreName)
	}

	lines, err := s.ListTransactions(ctx, store.Filter{From: day, To: day})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 19, lines[0].PaymentTime.Hour())
	assert.Equal(t, 15.0, lines[0].Price)

	stores, err := s.ListStores(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Harbor", "Uptown"}, stores)
}

func TestPaymentTimeKeepsShopWallClock(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	kst := time.FixedZone("KST", 9*60*60)
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	paid := time.Date(2024, 6, 10, 12, 30, 0, 0, kst)

	summaries := []domain.DailySummaryRecord{
		{Date: day, StoreName: "Harbor", ReceiptNumber: "1", PaymentTime: paid, PaymentType: "Card", TotalSales: 18, ActualSales: 18},
	}
	details := []domain.TransactionRecord{
		{Date: day, StoreName: "Harbor", ReceiptNumber: "1", PaymentTime: paid, ProductName: "Meal Chicken Wrap", Quantity: 1, TotalSales: 10, Price: 10},
		{Date: day, StoreName: "Harbor", ReceiptNumber: "1", PaymentTime: paid, ProductName: "Coffee Latte", Quantity: 2, TotalSales: 8, Price: 4},
	}
	require.NoError(t, s.Load(ctx, summaries, details))

	var raw string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT payment_time FROM receipt_sales_detail LIMIT 1`).Scan(&raw))
	assert.Equal(t, "2024-06-10 12:30:00", raw)

	got, err := s.ListDailySummaries(ctx, store.Filter{From: day, To: day})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 12, got[0].PaymentTime.Hour())
	assert.Equal(t, 30, got[0].PaymentTime.Minute())

	lines, err := s.ListTransactions(ctx, store.Filter{From: day, To: day})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	pattern := analytics.HourlyPattern(lines)
	require.Len(t, pattern.Data, 24)
	for _, p := range pattern.Data {
		if p.Index == 12 {
			assert.Equal(t, 1, p.Transactions)
			assert.InDelta(t, 18, p.Value, 1e-9)
			continue
		}
		assert.Zero(t, p.Transactions, "hour %d", p.Index)
	}
}

func TestUsers(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, domain.UserAccount{Username: " Analyst ", Password: "hash", Active: true}))
	require.ErrorIs(t, s.CreateUser(ctx, domain.UserAccount{Username: "analyst", Password: "other"}), store.ErrInvalidUser)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "analyst", users[0].Username)
	assert.Equal(t, "viewer", users[0].Role)
	assert.True(t, users[0].Active)

	require.NoError(t, s.UpdateUserPassword(ctx, "ANALYST", "new-hash"))
	require.ErrorIs(t, s.UpdateUserPassword(ctx, "ghost", "x"), store.ErrNotFound)
}
