// Package analytics turns raw sales rows into the derived series, patterns,
// forecasts and comparisons served by the API. Functions here are pure:
// they never touch storage and never fail on thin data, they return a
// well-formed result with an explanatory message instead.
package analytics

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedMetric    = errors.New("unsupported metric")
	ErrUnsupportedMethod    = errors.New("unsupported method")
	ErrUnsupportedPattern   = errors.New("unsupported pattern type")
	ErrUnsupportedPeriod    = errors.New("unsupported period type")
	ErrUnsupportedBenchmark = errors.New("unsupported benchmark type")
	ErrInvalidDateRange     = errors.New("invalid date range")
)

// Metric is a per-day value derived from summary rows.
type Metric string

const (
	MetricTotalSales     Metric = "total_sales"
	MetricActualSales    Metric = "actual_sales"
	MetricTotalDiscount  Metric = "total_discount"
	MetricTransactions   Metric = "transactions"
	MetricAvgTransaction Metric = "avg_transaction"
)

func ParseMetric(raw string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(MetricTotalSales):
		return MetricTotalSales, nil
	case string(MetricActualSales):
		return MetricActualSales, nil
	case string(MetricTotalDiscount), "discount_amount":
		return MetricTotalDiscount, nil
	case string(MetricTransactions), "transaction_count":
		return MetricTransactions, nil
	case string(MetricAvgTransaction):
		return MetricAvgTransaction, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMetric, raw)
}

type AnomalyMethod string

const (
	AnomalyZScore AnomalyMethod = "zscore"
	AnomalyIQR    AnomalyMethod = "iqr"
)

const (
	DefaultZScoreThreshold = 3.0
	DefaultIQRThreshold    = 1.5
)

func ParseAnomalyMethod(raw string) (AnomalyMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "zscore", "z-score", "z_score":
		return AnomalyZScore, nil
	case "iqr":
		return AnomalyIQR, nil
	}
	return "", fmt.Errorf("%w: anomaly method %q", ErrUnsupportedMethod, raw)
}

// DefaultThreshold is the conventional cut-off for the method.
func (m AnomalyMethod) DefaultThreshold() float64 {
	if m == AnomalyIQR {
		return DefaultIQRThreshold
	}
	return DefaultZScoreThreshold
}

type CorrelationMethod string

const (
	CorrelationPearson  CorrelationMethod = "pearson"
	CorrelationSpearman CorrelationMethod = "spearman"
	CorrelationKendall  CorrelationMethod = "kendall"
)

func ParseCorrelationMethod(raw string) (CorrelationMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pearson":
		return CorrelationPearson, nil
	case "spearman":
		return CorrelationSpearman, nil
	case "kendall":
		return CorrelationKendall, nil
	}
	return "", fmt.Errorf("%w: correlation method %q", ErrUnsupportedMethod, raw)
}

type PatternType string

const (
	PatternHourly PatternType = "hourly"
	PatternDaily  PatternType = "daily"
)

func ParsePatternType(raw string) (PatternType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "hourly":
		return PatternHourly, nil
	case "daily", "weekday":
		return PatternDaily, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPattern, raw)
}

type PeriodType string

const (
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

func ParsePeriodType(raw string) (PeriodType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "weekly":
		return PeriodWeekly, nil
	case "monthly":
		return PeriodMonthly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPeriod, raw)
}

type ForecastMethod string

const (
	ForecastAuto   ForecastMethod = "auto"
	ForecastLinear ForecastMethod = "linear"
)

func ParseForecastMethod(raw string) (ForecastMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto", "arima":
		return ForecastAuto, nil
	case "linear":
		return ForecastLinear, nil
	}
	return "", fmt.Errorf("%w: forecast method %q", ErrUnsupportedMethod, raw)
}

type BenchmarkType string

const (
	BenchmarkAll      BenchmarkType = "ALL"
	BenchmarkTop25    BenchmarkType = "TOP_25"
	BenchmarkBottom25 BenchmarkType = "BOTTOM_25"
	BenchmarkSimilar  BenchmarkType = "SIMILAR"
)

func ParseBenchmarkType(raw string) (BenchmarkType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "ALL":
		return BenchmarkAll, nil
	case "TOP_25":
		return BenchmarkTop25, nil
	case "BOTTOM_25":
		return BenchmarkBottom25, nil
	case "SIMILAR":
		return BenchmarkSimilar, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedBenchmark, raw)
}

// StoreMetric names one of the per-store baseline metrics.
type StoreMetric string

const (
	StoreTotalSales       StoreMetric = "total_sales"
	StoreTransactionCount StoreMetric = "transaction_count"
	StoreAvgTransaction   StoreMetric = "avg_transaction"
	StoreDiscountRate     StoreMetric = "discount_rate"
	StoreAvgDailySales    StoreMetric = "avg_daily_sales"
)

var DefaultComparisonMetrics = []StoreMetric{
	StoreTotalSales,
	StoreAvgTransaction,
	StoreDiscountRate,
	StoreTransactionCount,
}

func ParseStoreMetric(raw string) (StoreMetric, error) {
	switch m := StoreMetric(strings.ToLower(strings.TrimSpace(raw))); m {
	case StoreTotalSales, StoreTransactionCount, StoreAvgTransaction, StoreDiscountRate, StoreAvgDailySales:
		return m, nil
	case "":
		return StoreTotalSales, nil
	}
	return "", fmt.Errorf("%w: store metric %q", ErrUnsupportedMetric, raw)
}

// LowerIsBetter reports whether a smaller value is the favourable direction.
func (m StoreMetric) LowerIsBetter() bool {
	return m == StoreDiscountRate
}

func (m StoreMetric) DisplayName() string {
	switch m {
	case StoreTotalSales:
		return "Total Sales"
	case StoreTransactionCount:
		return "Transaction Count"
	case StoreAvgTransaction:
		return "Avg Transaction"
	case StoreDiscountRate:
		return "Discount Rate"
	case StoreAvgDailySales:
		return "Avg Daily Sales"
	}
	return string(m)
}
