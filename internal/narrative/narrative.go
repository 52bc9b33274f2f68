// Package narrative turns chart data into a short prose analysis through an
// OpenAI-compatible chat completion endpoint.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"retailpulse/backend/internal/domain"
)

// MaxPoints caps the chart data forwarded to the model.
const MaxPoints = 300

// DisabledMessage is returned when no API key is configured.
const DisabledMessage = "Narrative analysis is disabled: no OPENAI_API_KEY is configured."

var (
	ErrInvalidRequest = errors.New("invalid narrative request")
	ErrEmptyResponse  = errors.New("no completion choices")
)

type Generator interface {
	Analyze(ctx context.Context, req domain.NarrativeRequest) (domain.NarrativeResponse, error)
}

const systemPrompt = `You are a retail franchise sales analyst. Read the chart data and give management a concise, practical interpretation.

Consider:
1. The main patterns and trends in the data.
2. Outliers and unusual points.
3. Practical implications for store operations.
4. Ignore missing data and work from what is provided.

Cross-check the figures instead of restating them. Use Markdown with bullet points, keep the analysis under 500 words and lead with results and insights.`

var chartPrompts = map[string]string{
	"dailySales": `Analyze the daily sales data, focusing on:
- direction of sales and growth rate
- weekday and weekly patterns
- outlier days and likely causes
- seasonal or cyclical behaviour
- estimated effect of events or discounts`,
	"hourlySales": `Analyze the hourly sales data, focusing on:
- peak and slow hours
- opportunities to run each hour more efficiently
- staffing suggestions
- how sales shift across the day
- whether opening hours should change`,
	"productSales": `Analyze the product sales data, focusing on:
- the products driving revenue and their share
- underperforming products
- products that sell together
- product mix improvements
- product groups that need promotion`,
	"productDistribution": `Analyze the product share data, focusing on:
- how balanced the portfolio is
- revenue contribution by product
- product mix improvements
- cross-sell and upsell opportunities
- inventory and ordering suggestions`,
	"productAnalysis": `Analyze the product performance data, focusing on:
- top products by revenue versus top products by volume
- performance by price band
- portfolio diversity
- average unit price and pricing strategy
- product groups that need promotion`,
	"timeAnalysis": `Analyze the weekday and hourly patterns, focusing on:
- weekday versus weekend demand
- peak and slow hours
- how product preferences change through the day
- staffing and operating efficiency
- timing of promotions and replenishment`,
}

var chartLabels = map[string]string{
	"dailySales":          "daily sales",
	"hourlySales":         "hourly sales",
	"productSales":        "product sales",
	"productDistribution": "product distribution",
	"productAnalysis":     "product analysis",
	"timeAnalysis":        "time pattern",
}

// Truncate keeps at most MaxPoints leading points.
func Truncate(points []map[string]any) []map[string]any {
	if len(points) > MaxPoints {
		return points[:MaxPoints]
	}
	return points
}

func Validate(req domain.NarrativeRequest) error {
	if strings.TrimSpace(req.ChartType) == "" {
		return fmt.Errorf("%w: chart_type is required", ErrInvalidRequest)
	}
	if len(req.ChartData) == 0 {
		return fmt.Errorf("%w: chart_data is empty", ErrInvalidRequest)
	}
	return nil
}

func contextString(ctx map[string]any, key, fallback string) string {
	if ctx == nil {
		return fallback
	}
	switch v := ctx[key].(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return v
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}
	return fallback
}

// BuildPrompt renders the user message for req. A "userPrompt" context
// entry replaces the chart-type guidance.
func BuildPrompt(req domain.NarrativeRequest) (string, error) {
	label, ok := chartLabels[req.ChartType]
	if !ok {
		label = req.ChartType
	}
	guidance := contextString(req.Context, "userPrompt", chartPrompts[req.ChartType])

	points, err := json.MarshalIndent(Truncate(req.ChartData), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode chart data: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the data behind this %s chart.\n\n", label)
	fmt.Fprintf(&b, "Chart title: %s\n", contextString(req.Context, "chartTitle", label))
	fmt.Fprintf(&b, "Period: %s\n", contextString(req.Context, "dateRange", "recent data"))
	fmt.Fprintf(&b, "Stores: %s\n", contextString(req.Context, "selectedStores", "all stores"))
	if guidance != "" {
		b.WriteString("\n")
		b.WriteString(guidance)
		b.WriteString("\n")
	}
	b.WriteString("\nData points:\n")
	b.Write(points)
	b.WriteString("\n\nGive a professional analysis with insights that support management decisions.")
	return b.String(), nil
}

type OpenAI struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// New returns an OpenAI-backed generator, or Disabled when no key is set.
func New(opts Options, logger *zap.Logger) Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		logger.Warn("OPENAI_API_KEY not set; narrative analysis disabled")
		return Disabled{}
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = base
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

func (g *OpenAI) Analyze(ctx context.Context, req domain.NarrativeRequest) (domain.NarrativeResponse, error) {
	if err := Validate(req); err != nil {
		return domain.NarrativeResponse{}, err
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return domain.NarrativeResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	startedAt := time.Now()
	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return domain.NarrativeResponse{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.NarrativeResponse{}, ErrEmptyResponse
	}

	used := len(Truncate(req.ChartData))
	g.logger.Info("narrative generated",
		zap.String("chart_type", req.ChartType),
		zap.Int("points", used),
		zap.Duration("took", time.Since(startedAt)),
	)
	return domain.NarrativeResponse{
		ChartType:  req.ChartType,
		Analysis:   strings.TrimSpace(resp.Choices[0].Message.Content),
		PointsUsed: used,
	}, nil
}

// Disabled answers every request with DisabledMessage.
type Disabled struct{}

func (Disabled) Analyze(_ context.Context, req domain.NarrativeRequest) (domain.NarrativeResponse, error) {
	if err := Validate(req); err != nil {
		return domain.NarrativeResponse{}, err
	}
	return domain.NarrativeResponse{
		ChartType:  req.ChartType,
		Analysis:   DisabledMessage,
		PointsUsed: len(Truncate(req.ChartData)),
	}, nil
}
