package http

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

	"github.com/MKY508/momentum-lens-sub000/internal/application"
	"github.com/MKY508/momentum-lens-sub000/internal/backtest"
	"github.com/MKY508/momentum-lens-sub000/internal/data"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/momentum"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/rank"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/regime"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/selector"
	"github.com/MKY508/momentum-lens-sub000/internal/report"
)

type memSource struct {
	series map[string][]market.PriceBar
}

func (m *memSource) LoadBars(_ context.Context, symbol string, _, _ time.Time) ([]market.PriceBar, error) {
	bars, ok := m.series[symbol]
	if !ok {
		return nil, data.ErrNotFound
	}
	return bars, nil
}

func trendBars(n int, base, dailyGrowth float64) []market.PriceBar {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := base
	bars := make([]market.PriceBar, 0, n)
	for len(bars) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			bars = append(bars, market.PriceBar{
				Timestamp: d,
				Open:      price, High: price * 1.01, Low: price * 0.99, Close: price,
				Volume: 1_000_000,
			})
			price *= 1 + dailyGrowth
		}
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

func testServer(t *testing.T) (*Server, *MetricsRegistry) {
	t.Helper()
	conditions := regime.DefaultConditionConfig()
	conditions.MAWindow = 20
	conditions.ChopWindow = 5
	conditions.ADXWindow = 5
	conditions.EMAFastSpan = 5
	conditions.EMASlowSpan = 15
	conditions.SlopeWindow = 5
	conditions.ATRWindow = 5
	conditions.ATRRefWindow = 20
	conditions.VolumeWindow = 5

	analysis := application.AnalysisConfig{
		Symbols:   []string{"CORE", "AAA", "BBB"},
		Benchmark: "BENCH",
		Strategy: backtest.StrategyConfig{
			Momentum:           momentum.Config{Windows: []int{10, 20}, Weights: []float64{0.6, 0.4}},
			Stability:          rank.StabilityParams{Method: rank.PresenceRatio, Window: 5, TopN: 3},
			StabilityWeight:    0.3,
			PercentileLookback: 20,
			Selector:           selector.Params{TopN: 2, MinPercentile: 0.2, MaxCorrelation: 0.95, HysteresisAdvantage: 0.01},
			CorrelationWindow:  10,
			CoreSymbol:         "CORE",
			InitialState:       regime.Neutral,
			Conditions:         conditions,
		},
	}
	source := &memSource{series: map[string][]market.PriceBar{
		"BENCH": trendBars(90, 4000, 0.001),
		"CORE":  trendBars(90, 100, 0.0001),
		"AAA":   trendBars(90, 50, 0.002),
		"BBB":   trendBars(90, 80, 0.001),
	}}
	metrics := NewMetricsRegistry()
	return NewServer(":0", analysis, source, metrics, "test"), metrics
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var health HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Positive(t, health.Goroutines)
}

func TestRankEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rank", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var rep report.AnalysisReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rep))
	assert.Equal(t, "BENCH", rep.Benchmark)
	assert.Len(t, rep.Rows, 3)
}

func TestRegimeEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/regime", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snap report.RegimeSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.NotZero(t, snap.Profile.CoreRatio)
}

func TestRankEndpointFailureIs500(t *testing.T) {
	srv, _ := testServer(t)
	srv.source = &memSource{series: map[string][]market.PriceBar{}}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rank", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, metrics := testServer(t)
	metrics.RecordCacheHit("memory")
	metrics.RecordCacheMiss("memory")

	// Exercise /rank first so analysis metrics have samples.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rank", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"momentumlens_analysis_duration_seconds",
		"momentumlens_analysis_runs_total",
		"momentumlens_cache_hits_total",
		"momentumlens_cache_misses_total",
		"momentumlens_active_regime",
	} {
		assert.True(t, strings.Contains(body, name), "metrics output missing %s", name)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rank", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
