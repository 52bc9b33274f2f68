package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/service"
)

const (
	defaultProductLimit   = 20
	maxProductLimit       = 500
	defaultPerformerLimit = 5
	maxPerformerLimit     = 100
)

// parseQuery reads the window and store filter shared by every analytics route.
func parseQuery(r *http.Request) (service.Query, error) {
	values := r.URL.Query()
	q := service.Query{
		Start:  values.Get("start_date"),
		End:    values.Get("end_date"),
		Stores: multiValue(values, "store_name"),
	}
	days, err := intParam(values, "days")
	if err != nil {
		return q, err
	}
	q.Days = days
	return q, nil
}

// multiValue accepts both repeated keys and comma separated lists.
func multiValue(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// intParam returns 0 when key is absent and rejects anything but a positive integer.
func intParam(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", service.ErrInvalidArgument, key)
	}
	return n, nil
}

// floatParam returns 0 when key is absent and rejects anything but a finite
// positive number.
func floatParam(values url.Values, key string) (float64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive number", service.ErrInvalidArgument, key)
	}
	return f, nil
}

func (a *API) handleStores(w http.ResponseWriter, r *http.Request) {
	stores, err := a.service.ListStores(r.Context())
	a.respond(w, r, map[string]any{"stores": stores}, err)
}

func (a *API) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.service.TimeSeries(r.Context(), q, r.URL.Query().Get("metric"))
	a.respond(w, r, resp, err)
}

func (a *API) handleForecast(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	values := r.URL.Query()
	days, err := intParam(values, "forecast_days")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.service.Forecast(r.Context(), q, values.Get("metric"), days, values.Get("method"))
	a.respond(w, r, resp, err)
}

func (a *API) handleSeasonality(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	values := r.URL.Query()
	resp, err := a.service.Seasonality(r.Context(), q, values.Get("metric"), values.Get("period_type"))
	a.respond(w, r, resp, err)
}

func (a *API) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	values := r.URL.Query()
	threshold, err := floatParam(values, "threshold")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.service.Anomalies(r.Context(), q, values.Get("metric"), values.Get("method"), threshold)
	a.respond(w, r, resp, err)
}

func (a *API) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	values := r.URL.Query()
	resp, err := a.service.Correlations(r.Context(), q, multiValue(values, "variables"), values.Get("method"))
	a.respond(w, r, resp, err)
}

func (a *API) handlePatterns(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.service.Patterns(r.Context(), q, r.URL.Query().Get("pattern_type"))
	a.respond(w, r, resp, err)
}

func (a *API) handleCompareStores(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	values := r.URL.Query()
	resp, err := a.service.CompareStores(r.Context(), q, values.Get("store_name"), values.Get("benchmark_type"), multiValue(values, "metrics"))
	a.respond(w, r, resp, err)
}

func (a *API) handleTopPerformers(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	values := r.URL.Query()
	limit := parsePositiveLimit(values.Get("limit"), defaultPerformerLimit, maxPerformerLimit)
	resp, err := a.service.TopPerformers(r.Context(), q, values.Get("metric"), limit)
	a.respond(w, r, resp, err)
}

func (a *API) handleKPISummary(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.service.KPISummary(r.Context(), q)
	a.respond(w, r, resp, err)
}

func (a *API) handleKPITrends(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.service.KPITrends(r.Context(), q, r.URL.Query().Get("metric"))
	a.respond(w, r, resp, err)
}

func (a *API) handleCategoryKPIs(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	categories, err := a.service.CategoryKPIs(r.Context(), q)
	a.respond(w, r, map[string]any{"categories": categories}, err)
}

func (a *API) handleHourlySales(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	hourly, err := a.service.HourlySales(r.Context(), q)
	a.respond(w, r, map[string]any{"hourly": hourly}, err)
}

func (a *API) handleProductSales(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), defaultProductLimit, maxProductLimit)
	products, err := a.service.ProductSales(r.Context(), q, limit)
	a.respond(w, r, map[string]any{"products": products}, err)
}

func (a *API) handlePaymentTypes(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	payments, err := a.service.PaymentTypes(r.Context(), q)
	a.respond(w, r, map[string]any{"payment_types": payments}, err)
}

func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req domain.NarrativeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.Analyze(r.Context(), req)
	a.respond(w, r, resp, err)
}
