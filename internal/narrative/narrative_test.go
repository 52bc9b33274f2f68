package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"retailpulse/backend/internal/domain"
)

func points(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"x": i, "y": float64(i) * 1.5}
	}
	return out
}

func TestTruncateCapsPoints(t *testing.T) {
	assert.Len(t, Truncate(points(10)), 10)
	assert.Len(t, Truncate(points(MaxPoints+50)), MaxPoints)
}

func TestBuildPromptUsesChartGuidanceAndOverride(t *testing.T) {
	prompt, err := BuildPrompt(domain.NarrativeRequest{
		ChartType: "hourlySales",
		ChartData: points(2),
		Context:   map[string]any{"selectedStores": []any{"Harbor Point", "Uptown"}},
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "hourly sales chart")
	assert.Contains(t, prompt, "peak and slow hours")
	assert.Contains(t, prompt, "Stores: Harbor Point, Uptown")

	prompt, err = BuildPrompt(domain.NarrativeRequest{
		ChartType: "dailySales",
		ChartData: points(1),
		Context:   map[string]any{"userPrompt": "Only talk about Mondays."},
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Only talk about Mondays.")
	assert.NotContains(t, prompt, "growth rate")
}

func TestDisabledExplainsItself(t *testing.T) {
	gen := New(Options{}, zaptest.NewLogger(t))
	resp, err := gen.Analyze(context.Background(), domain.NarrativeRequest{ChartType: "dailySales", ChartData: points(400)})
	require.NoError(t, err)
	assert.Equal(t, DisabledMessage, resp.Analysis)
	assert.Equal(t, MaxPoints, resp.PointsUsed)

	_, err = gen.Analyze(context.Background(), domain.NarrativeRequest{ChartType: "dailySales"})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestOpenAIGeneratorSendsCappedPrompt(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Sales climb on weekends.  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	gen := New(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "test-model", Timeout: 5 * time.Second}, zaptest.NewLogger(t))
	resp, err := gen.Analyze(context.Background(), domain.NarrativeRequest{ChartType: "dailySales", ChartData: points(MaxPoints + 1)})
	require.NoError(t, err)
	assert.Equal(t, "Sales climb on weekends.", resp.Analysis)
	assert.Equal(t, MaxPoints, resp.PointsUsed)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, `"x": 299`)
	assert.NotContains(t, got.Messages[1].Content, `"x": 300`)
}

func TestOpenAIGeneratorSurfacesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	gen := New(Options{APIKey: "k", BaseURL: srv.URL}, zaptest.NewLogger(t))
	_, err := gen.Analyze(context.Background(), domain.NarrativeRequest{ChartType: "dailySales", ChartData: points(1)})
	require.ErrorIs(t, err, ErrEmptyResponse)
}
