package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/regime"
)

func gaugeValue(t *testing.T, m *MetricsRegistry, name string) float64 {
	t.Helper()
	families, err := m.registry.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() == name {
			return fam.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestCacheHitRatio(t *testing.T) {
	m := NewMetricsRegistry()

	m.RecordCacheHit("memory")
	m.RecordCacheHit("memory")
	m.RecordCacheHit("redis")
	m.RecordCacheMiss("memory")

	assert.InDelta(t, 0.75, gaugeValue(t, m, "momentumlens_cache_hit_ratio"), 1e-9)
}

func TestRecordRegimeSwitch(t *testing.T) {
	m := NewMetricsRegistry()

	m.RecordRegimeSwitch(regime.Change{
		Timestamp: time.Now(),
		From:      regime.Neutral,
		To:        regime.Offense,
		Rule:      "neutral->offense",
		Satisfied: []string{"above_ma", "momentum_strong", "chop_low"},
	})

	assert.Equal(t, float64(regime.Offense), gaugeValue(t, m, "momentumlens_active_regime"))
}

func TestIsolatedRegistries(t *testing.T) {
	// Two registries must not collide; each owns its own Prometheus registry.
	a := NewMetricsRegistry()
	b := NewMetricsRegistry()
	a.RecordCacheHit("memory")
	b.RecordCacheMiss("memory")

	assert.InDelta(t, 1.0, gaugeValue(t, a, "momentumlens_cache_hit_ratio"), 1e-9)
	assert.InDelta(t, 0.0, gaugeValue(t, b, "momentumlens_cache_hit_ratio"), 1e-9)
}
