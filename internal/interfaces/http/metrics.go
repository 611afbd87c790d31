package http

import (
	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/regime"
)

// MetricsRegistry holds the Prometheus metrics exposed by the ops server.
// It owns its own registry so tests can build isolated instances.
type MetricsRegistry struct {
	registry *prometheus.Registry

	AnalysisDuration *prometheus.HistogramVec
	AnalysisRuns     *prometheus.CounterVec

	RegimeSwitches *prometheus.CounterVec
	ActiveRegime   prometheus.Gauge

	CacheHitRatio prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
}

// NewMetricsRegistry creates and registers all metrics.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "momentumlens_analysis_duration_seconds",
				Help:    "Duration of analysis pipeline runs in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"result"},
		),

		AnalysisRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentumlens_analysis_runs_total",
				Help: "Total number of analysis runs by result",
			},
			[]string{"result"},
		),

		RegimeSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentumlens_regime_switches_total",
				Help: "Total number of regime switches by from/to state",
			},
			[]string{"from_state", "to_state"},
		),

		ActiveRegime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "momentumlens_active_regime",
				Help: "Current regime (0=neutral, 1=offense, 2=defense)",
			},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "momentumlens_cache_hit_ratio",
				Help: "Current bar-cache hit ratio (0.0 to 1.0)",
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentumlens_cache_hits_total",
				Help: "Total number of cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentumlens_cache_misses_total",
				Help: "Total number of cache misses by cache type",
			},
			[]string{"cache_type"},
		),
	}

	m.registry.MustRegister(
		m.AnalysisDuration,
		m.AnalysisRuns,
		m.RegimeSwitches,
		m.ActiveRegime,
		m.CacheHitRatio,
		m.CacheHits,
		m.CacheMisses,
	)

	return m
}

// Gatherer exposes the underlying registry for the /metrics endpoint.
func (m *MetricsRegistry) Gatherer() prometheus.Gatherer { return m.registry }

// RecordAnalysis records one analysis run.
func (m *MetricsRegistry) RecordAnalysis(seconds float64, result string) {
	m.AnalysisDuration.WithLabelValues(result).Observe(seconds)
	m.AnalysisRuns.WithLabelValues(result).Inc()
}

// RecordRegimeSwitch records one state transition and updates the current
// regime gauge.
func (m *MetricsRegistry) RecordRegimeSwitch(change regime.Change) {
	m.RegimeSwitches.WithLabelValues(change.From.String(), change.To.String()).Inc()
	m.ActiveRegime.Set(float64(change.To))
	log.Debug().
		Str("from", change.From.String()).
		Str("to", change.To.String()).
		Msg("Regime switch recorded")
}

// RecordCacheHit records a cache hit for the given cache type.
func (m *MetricsRegistry) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

// RecordCacheMiss records a cache miss for the given cache type.
func (m *MetricsRegistry) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
	m.updateCacheHitRatio()
}

func (m *MetricsRegistry) updateCacheHitRatio() {
	hits := sumCounterVec(m.CacheHits)
	misses := sumCounterVec(m.CacheMisses)
	if total := hits + misses; total > 0 {
		m.CacheHitRatio.Set(hits / total)
	}
}

func sumCounterVec(vec *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()

	total := 0.0
	for metric := range ch {
		var pb io_prometheus_client.Metric
		if err := metric.Write(&pb); err == nil {
			total += pb.GetCounter().GetValue()
		}
	}
	return total
}
