package application

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKY508/momentum-lens-sub000/internal/backtest"
	"github.com/MKY508/momentum-lens-sub000/internal/data"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/momentum"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/rank"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/regime"
	"github.com/MKY508/momentum-lens-sub000/internal/domain/selector"
)

// memSource serves canned bar series, skipping weekends like a real feed.
type memSource struct {
	series map[string][]market.PriceBar
}

func (m *memSource) LoadBars(_ context.Context, symbol string, from, to time.Time) ([]market.PriceBar, error) {
	bars, ok := m.series[symbol]
	if !ok {
		return nil, data.ErrNotFound
	}
	var out []market.PriceBar
	for _, b := range bars {
		if !from.IsZero() && b.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && b.Timestamp.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func trendBars(start time.Time, n int, base, dailyGrowth float64) []market.PriceBar {
	bars := make([]market.PriceBar, 0, n)
	d := start
	price := base
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

func testStrategyConfig() backtest.StrategyConfig {
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

	return backtest.StrategyConfig{
		Momentum:           momentum.Config{Windows: []int{10, 20}, Weights: []float64{0.6, 0.4}},
		Stability:          rank.StabilityParams{Method: rank.PresenceRatio, Window: 5, TopN: 3},
		StabilityWeight:    0.3,
		PercentileLookback: 20,
		Selector:           selector.Params{TopN: 2, MinPercentile: 0.2, MaxCorrelation: 0.95, HysteresisAdvantage: 0.01},
		CorrelationWindow:  10,
		CoreSymbol:         "CORE",
		InitialState:       regime.Neutral,
		Conditions:         conditions,
	}
}

func testSource(days int) *memSource {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &memSource{series: map[string][]market.PriceBar{
		"BENCH": trendBars(start, days, 4000, 0.001),
		"CORE":  trendBars(start, days, 100, 0.0001),
		"AAA":   trendBars(start, days, 50, 0.002),
		"BBB":   trendBars(start, days, 80, 0.001),
		"CCC":   trendBars(start, days, 30, -0.001),
	}}
}

func testAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Symbols:   []string{"CORE", "AAA", "BBB", "CCC"},
		Benchmark: "BENCH",
		Strategy:  testStrategyConfig(),
	}
}

func TestAnalyzerRun(t *testing.T) {
	rep, err := NewAnalyzer(testAnalysisConfig(), testSource(90)).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, rep.Rows, 4)
	assert.Equal(t, "BENCH", rep.Benchmark)
	assert.Empty(t, rep.Dropped)

	// Rows come ranked best-first; unranked rows sink to the bottom.
	prev := 0
	for _, row := range rep.Rows {
		if row.Rank == 0 {
			continue
		}
		require.Greater(t, row.Rank, prev, "rows out of rank order: %+v", rep.Rows)
		prev = row.Rank
	}

	// The steady uptrend AAA should outrank the decliner CCC.
	var aaa, ccc int
	for _, row := range rep.Rows {
		switch row.Symbol {
		case "AAA":
			aaa = row.Rank
		case "CCC":
			ccc = row.Rank
		}
	}
	require.NotZero(t, aaa)
	require.NotZero(t, ccc)
	assert.Less(t, aaa, ccc)

	// Momentum components surface in the report.
	for _, row := range rep.Rows {
		if row.Rank == 0 {
			continue
		}
		assert.Contains(t, row.Components, "r10")
		assert.Contains(t, row.Components, "r20")
	}
}

func TestAnalyzerTargetsSumToOne(t *testing.T) {
	rep, err := NewAnalyzer(testAnalysisConfig(), testSource(90)).Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rep.Targets)

	assert.Contains(t, rep.Targets, "CORE")

	total := 0.0
	for _, w := range rep.Targets {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestAnalyzerCoreExcludedFromSelection(t *testing.T) {
	rep, err := NewAnalyzer(testAnalysisConfig(), testSource(90)).Run(context.Background())
	require.NoError(t, err)

	for _, row := range rep.Rows {
		if row.Symbol == "CORE" {
			assert.False(t, row.Selected, "core sleeve must not compete for satellite slots")
		}
	}
}

func TestAnalyzerHoldingsMarkHeld(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.Holdings = []string{"BBB"}
	rep, err := NewAnalyzer(cfg, testSource(90)).Run(context.Background())
	require.NoError(t, err)

	for _, row := range rep.Rows {
		assert.Equal(t, row.Symbol == "BBB", row.Held, "symbol %s", row.Symbol)
	}
}

func TestAnalyzerDropsUnloadableSymbols(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.Symbols = append(cfg.Symbols, "MISSING")
	rep, err := NewAnalyzer(cfg, testSource(90)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"MISSING"}, rep.Dropped)
	assert.Len(t, rep.Rows, 4)
}

func TestAnalyzerMissingBenchmark(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.Benchmark = "GONE"
	_, err := NewAnalyzer(cfg, testSource(90)).Run(context.Background())
	require.Error(t, err)
}

func TestAnalyzerValidatesConfig(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.Symbols = nil
	_, err := NewAnalyzer(cfg, testSource(90)).Run(context.Background())
	require.Error(t, err)
}

func TestAnalyzerScoresFinite(t *testing.T) {
	rep, err := NewAnalyzer(testAnalysisConfig(), testSource(90)).Run(context.Background())
	require.NoError(t, err)

	for _, row := range rep.Rows {
		if row.Rank == 0 {
			continue
		}
		assert.False(t, math.IsNaN(row.RawScore), "ranked row %s has NaN raw score", row.Symbol)
		assert.False(t, math.IsNaN(row.Adjusted), "ranked row %s has NaN adjusted score", row.Symbol)
	}
}
