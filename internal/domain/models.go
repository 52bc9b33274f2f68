package domain

import "time"

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// DailySummaryRecord is one receipt-level row of the daily sales summary.
type DailySummaryRecord struct {
	Date          time.Time
	StoreName     string
	ReceiptNumber string
	PaymentTime   time.Time
	PaymentType   string
	TotalSales    float64
	TotalDiscount float64
	ActualSales   float64
}

// TransactionRecord is one line item of a receipt.
type TransactionRecord struct {
	Date           time.Time
	StoreName      string
	ReceiptNumber  string
	PaymentType    string
	PaymentTime    time.Time
	ProductCode    string
	ProductName    string
	Quantity       int
	TotalSales     float64
	DiscountAmount float64
	ActualSales    float64
	Price          float64
}

type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type TrendInfo struct {
	Slope               float64  `json:"slope"`
	Intercept           float64  `json:"intercept"`
	StartValue          float64  `json:"start_value"`
	EndValue            float64  `json:"end_value"`
	ChangePercent       float64  `json:"change_percent"`
	SeasonalityStrength *float64 `json:"seasonality_strength,omitempty"`
	Period              int      `json:"period,omitempty"`
	PeriodType          string   `json:"period_type,omitempty"`
	Message             string   `json:"message,omitempty"`
}

type TimeSeriesResponse struct {
	Metric     string        `json:"metric"`
	ActualData []SeriesPoint `json:"actual_data"`
	TrendType  string        `json:"trend_type"`
	TrendInfo  *TrendInfo    `json:"trend_info,omitempty"`
}

type ForecastPoint struct {
	Date       string  `json:"date"`
	Value      float64 `json:"value"`
	UpperBound float64 `json:"upper_bound"`
	LowerBound float64 `json:"lower_bound"`
}

type ForecastInfo struct {
	ForecastStart   string  `json:"forecast_start"`
	ForecastEnd     string  `json:"forecast_end"`
	ForecastDays    int     `json:"forecast_days"`
	AverageForecast float64 `json:"average_forecast"`
	ForecastMethod  string  `json:"forecast_method"`
}

type ForecastResponse struct {
	Metric         string          `json:"metric"`
	HistoricalData []SeriesPoint   `json:"historical_data"`
	ForecastData   []ForecastPoint `json:"forecast_data"`
	ForecastInfo   *ForecastInfo   `json:"forecast_info,omitempty"`
	Error          string          `json:"error,omitempty"`
}

type SeasonalComponent struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

type SeasonalityResponse struct {
	PeriodType         string              `json:"period_type"`
	SeasonalComponents []SeasonalComponent `json:"seasonal_components"`
	Strength           float64             `json:"strength"`
	Insights           []string            `json:"insights"`
}

type AnomalyPoint struct {
	Date          string  `json:"date"`
	Value         float64 `json:"value"`
	ExpectedValue float64 `json:"expected_value"`
	Score         float64 `json:"z_score"`
	IsAnomaly     bool    `json:"is_anomaly"`
}

type AnomalyResponse struct {
	Metric       string         `json:"metric"`
	Method       string         `json:"method"`
	Threshold    float64        `json:"threshold"`
	Data         []AnomalyPoint `json:"data"`
	AnomalyCount int            `json:"anomaly_count"`
	LowerBound   *float64       `json:"lower_bound,omitempty"`
	UpperBound   *float64       `json:"upper_bound,omitempty"`
}

type CorrelationPoint struct {
	Variable1    string  `json:"variable1"`
	Variable2    string  `json:"variable2"`
	Correlation  float64 `json:"correlation"`
	PValue       float64 `json:"p_value"`
	Significance bool    `json:"significance"`
}

type CorrelationResponse struct {
	Method   string                        `json:"method"`
	Data     []CorrelationPoint            `json:"data"`
	Matrix   map[string]map[string]float64 `json:"matrix"`
	Insights []string                      `json:"insights"`
}

// PatternPoint is one bucket of a categorical axis: an hour "0".."23" or a
// weekday label.
type PatternPoint struct {
	Index        int     `json:"index"`
	Label        string  `json:"x"`
	Value        float64 `json:"y"`
	Transactions int     `json:"transactions"`
}

type PatternResponse struct {
	PatternType string         `json:"pattern_type"`
	Data        []PatternPoint `json:"data"`
	Insights    []string       `json:"insights"`
}

type StoreMetrics struct {
	StoreName        string  `json:"store_name"`
	TotalSales       float64 `json:"total_sales"`
	TransactionCount int     `json:"transaction_count"`
	AvgTransaction   float64 `json:"avg_transaction"`
	DiscountRate     float64 `json:"discount_rate"`
	AvgDailySales    float64 `json:"avg_daily_sales"`
}

type ComparisonMetric struct {
	MetricName        string  `json:"metric_name"`
	DisplayName       string  `json:"display_name"`
	StoreValue        float64 `json:"store_value"`
	BenchmarkValue    float64 `json:"benchmark_value"`
	Difference        float64 `json:"difference"`
	PercentDifference float64 `json:"percent_difference"`
	IsPositive        bool    `json:"is_positive"`
}

type StoreComparisonResponse struct {
	StoreName       string             `json:"store_name"`
	BenchmarkType   string             `json:"benchmark_type"`
	BenchmarkStores []string           `json:"benchmark_stores"`
	Metrics         []ComparisonMetric `json:"metrics"`
	Insights        []string           `json:"insights"`
}

type TopPerformer struct {
	StoreName   string  `json:"store_name"`
	MetricValue float64 `json:"metric_value"`
	Rank        int     `json:"rank"`
}

type TopPerformerResponse struct {
	MetricName        string         `json:"metric_name"`
	MetricDisplayName string         `json:"metric_display_name"`
	Period            string         `json:"period"`
	Performers        []TopPerformer `json:"performers"`
}

type KPISummary struct {
	Scope
	TotalSales              float64 `json:"total_sales"`
	AverageDailySales       float64 `json:"average_daily_sales"`
	TotalTransactions       int     `json:"total_transactions"`
	AverageTransactionValue float64 `json:"average_transaction_value"`
	TotalCustomers          int     `json:"total_customers"`
	TotalDiscountAmount     float64 `json:"total_discount_amount"`
	DiscountRate            float64 `json:"discount_rate"`
}

type KPITrendPoint struct {
	Scope
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type KPITrendInfo struct {
	Trend      string  `json:"trend"`
	GrowthRate float64 `json:"growth_rate"`
	Slope      float64 `json:"slope"`
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
}

type KPITrend struct {
	Metric    string          `json:"metric"`
	Data      []KPITrendPoint `json:"data"`
	TrendInfo KPITrendInfo    `json:"trend_info"`
}

type CategoryKPI struct {
	Scope
	Category        string  `json:"category"`
	ProductCount    int     `json:"product_count"`
	TotalSales      float64 `json:"total_sales"`
	SalesPercentage float64 `json:"sales_percentage"`
	AveragePrice    float64 `json:"average_price"`
}

type ProductSales struct {
	Scope
	ProductName    string  `json:"product_name"`
	ProductCode    string  `json:"product_code"`
	Quantity       int     `json:"quantity"`
	TotalSales     float64 `json:"total_sales"`
	DiscountAmount float64 `json:"discount_amount"`
	ActualSales    float64 `json:"actual_sales"`
}

type HourlySales struct {
	Scope
	Hour         int     `json:"hour"`
	TotalSales   float64 `json:"total_sales"`
	ActualSales  float64 `json:"actual_sales"`
	Transactions int     `json:"transactions"`
}

type PaymentTypeSales struct {
	PaymentType      string  `json:"payment_type"`
	TransactionCount int     `json:"transaction_count"`
	TotalSales       float64 `json:"total_sales"`
	Percentage       float64 `json:"percentage"`
}

type NarrativeRequest struct {
	ChartType string           `json:"chart_type"`
	ChartData []map[string]any `json:"chart_data"`
	Context   map[string]any   `json:"context,omitempty"`
}

type NarrativeResponse struct {
	ChartType  string `json:"chart_type"`
	Analysis   string `json:"analysis"`
	PointsUsed int    `json:"points_used"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserSummary struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
