package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"retailpulse/backend/internal/domain"
	"retailpulse/backend/internal/narrative"
	"retailpulse/backend/internal/service"
	"retailpulse/backend/internal/store/memory"
)

var testToday = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

// newTestAPI builds a full API over generated demo sales, a real
// AuthManager and a real Service so handler tests exercise the complete
// request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	summaries, details := memory.GenerateDemo(memory.DemoOptions{Seed: memory.DemoSeed, End: testToday, Days: 90})
	repo := memory.New(summaries, details)
	metrics := NewMetrics()
	svc := service.New(repo, service.Options{
		CacheObserver: metrics.ObserveForecastCache,
		Now:           func() time.Time { return testToday },
	})
	auth := NewAuthManager("test-secret-key", time.Hour, repo)
	for _, u := range []domain.UserCreateRequest{
		{Username: "admin", Password: "admin123", Role: RoleAdmin},
		{Username: "viewer", Password: "viewer123", Role: RoleViewer},
	} {
		if _, err := auth.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}

	return New(svc, auth, Options{AllowedOrigin: "*", Metrics: metrics})
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func login(t *testing.T, api *API, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("%s login failed, status %d", username, res.Code)
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	t.Helper()
	return login(t, api, "admin", "admin123")
}

func authedRequest(method, target, token string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
	if body["role"] != RoleAdmin {
		t.Fatalf("expected admin role, got %v", body["role"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleStores_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req = authedRequest(http.MethodGet, "/api/v1/stores", "not-a-token", nil)
	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestHandleStores_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "viewer", "viewer123")

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/stores", token, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Stores []string `json:"stores"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Stores) != 4 {
		t.Fatalf("expected 4 demo stores, got %v", body.Stores)
	}
}

func TestAnalyticsRoutesServeDemoData(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "viewer", "viewer123")
	window := "start_date=2024-05-01&end_date=2024-06-30"

	routes := []string{
		"/api/v1/trends/time-series?" + window,
		"/api/v1/trends/time-series?days=30&store_name=Uptown&metric=transaction_count",
		"/api/v1/trends/forecast?" + window + "&forecast_days=7",
		"/api/v1/trends/forecast?" + window + "&method=linear",
		"/api/v1/trends/seasonality?" + window + "&period_type=weekly",
		"/api/v1/analytics/anomalies?" + window + "&method=iqr",
		"/api/v1/analytics/anomalies?days=45&threshold=2.5",
		"/api/v1/analytics/correlations?" + window + "&variables=total_sales,transaction_count&method=spearman",
		"/api/v1/analytics/patterns?" + window + "&pattern_type=hourly",
		"/api/v1/analytics/patterns?" + window + "&pattern_type=weekday",
		"/api/v1/compare/stores?" + window + "&store_name=Uptown&benchmark_type=all",
		"/api/v1/compare/top-performers?" + window + "&metric=avg_transaction&limit=2",
		"/api/v1/kpi/summary?" + window + "&store_name=Old%20Town",
		"/api/v1/kpi/trends?" + window + "&metric=actual_sales",
		"/api/v1/kpi/categories?" + window,
		"/api/v1/sales/hourly?days=7",
		"/api/v1/sales/products?days=7&limit=3",
		"/api/v1/sales/payment-types?" + window,
	}

	for _, target := range routes {
		rec := httptest.NewRecorder()
		api.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, target, token, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d (body: %s)", target, rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s: expected json content type, got %q", target, ct)
		}
	}
}

func TestTimeSeriesPayloadCoversWindow(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/trends/time-series?start_date=2024-06-01&end_date=2024-06-30", token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body domain.TimeSeriesResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.ActualData) != 30 {
		t.Fatalf("expected 30 daily points, got %d", len(body.ActualData))
	}
	if body.ActualData[0].Date != "2024-06-01" || body.ActualData[29].Date != "2024-06-30" {
		t.Fatalf("unexpected series bounds %s..%s", body.ActualData[0].Date, body.ActualData[29].Date)
	}
	if body.TrendType == "" {
		t.Fatalf("expected a trend classification")
	}
}

func TestInvalidParametersReturn400(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	routes := []string{
		"/api/v1/trends/time-series?metric=footfall",
		"/api/v1/trends/time-series?start_date=2024-06-30&end_date=2024-06-01",
		"/api/v1/trends/time-series?start_date=yesterday",
		"/api/v1/trends/time-series?days=-3",
		"/api/v1/trends/forecast?forecast_days=366",
		"/api/v1/trends/forecast?method=prophet",
		"/api/v1/trends/seasonality?period_type=hourly",
		"/api/v1/analytics/anomalies?method=dbscan",
		"/api/v1/analytics/anomalies?threshold=-1",
		"/api/v1/analytics/anomalies?threshold=NaN",
		"/api/v1/analytics/anomalies?threshold=Inf",
		"/api/v1/analytics/anomalies?threshold=-Inf",
		"/api/v1/analytics/correlations?variables=weather",
		"/api/v1/analytics/patterns?pattern_type=monthly",
		"/api/v1/compare/stores?benchmark_type=all",
		"/api/v1/compare/stores?store_name=Uptown&benchmark_type=nearby",
		"/api/v1/compare/top-performers?metric=footfall",
		"/api/v1/kpi/trends?metric=margin",
	}

	for _, target := range routes {
		rec := httptest.NewRecorder()
		api.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, target, token, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d (body: %s)", target, rec.Code, rec.Body.String())
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == nil {
			t.Fatalf("%s: expected a JSON error body, got %q", target, rec.Body.String())
		}
	}
}

func TestForecastCacheEventsAreExported(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	target := "/api/v1/trends/forecast?start_date=2024-05-01&end_date=2024-06-30&method=linear"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		api.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, target, token, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("forecast request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `forecast_cache_events_total{result="miss"} 2`) {
		t.Fatalf("expected two cache misses with the noop cache, got:\n%s", body)
	}
	if !strings.Contains(body, `route="/api/v1/trends/forecast"`) {
		t.Fatalf("expected forecast route in request metrics")
	}
}

func TestAnalyzeWithoutAPIKeyExplainsItself(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "viewer", "viewer123")

	payload, _ := json.Marshal(domain.NarrativeRequest{
		ChartType: "dailySales",
		ChartData: []map[string]any{{"date": "2024-06-01", "value": 120.5}},
	})
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/ai/analyze", token, bytes.NewReader(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.NarrativeResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Analysis != narrative.DisabledMessage {
		t.Fatalf("expected disabled message, got %q", body.Analysis)
	}

	empty, _ := json.Marshal(domain.NarrativeRequest{ChartType: "dailySales"})
	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/ai/analyze", token, bytes.NewReader(empty)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty chart data, got %d", rec.Code)
	}
}

func TestUserAdministrationRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	viewer := login(t, api, "viewer", "viewer123")
	admin := loginAsAdmin(t, api)

	payload, _ := json.Marshal(domain.UserCreateRequest{Username: "analyst", Password: "analyst-pass"})

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/users", viewer, bytes.NewReader(payload)))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/users", admin, bytes.NewReader(payload)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/users", admin, bytes.NewReader(payload)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate user, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/users", admin, nil))
	var body struct {
		Users []domain.UserSummary `json:"users"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Users) != 3 {
		t.Fatalf("expected 3 users, got %+v", body.Users)
	}

	if token := login(t, api, "analyst", "analyst-pass"); token == "" {
		t.Fatalf("expected new user to log in")
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	api := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

// TestMustHashPassword verifies that the test helper produces valid bcrypt hashes
// (used to confirm test infrastructure is sound).
func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash verification failed: %v", err)
	}
}

func TestWriteJSONRejectsUnencodablePayload(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"threshold": math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected a JSON body, got %q: %v", rec.Body.String(), err)
	}
	if body["error"] != "internal server error" {
		t.Fatalf("expected masked error, got %v", body["error"])
	}
}
