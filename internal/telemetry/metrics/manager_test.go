package metrics_test

import (
	"testing"

	"github.com/2beens/vitalsync/internal/telemetry/metrics"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Counters(t *testing.T) {
	manager, registry := metrics.NewTestManagerAndRegistry()

	manager.CounterSyncedDays.Add(7)
	manager.CounterInsightsGenerated.Inc()
	manager.CounterFitSyncs.WithLabelValues("success").Inc()
	manager.CounterFitSyncs.WithLabelValues("success").Inc()
	manager.GaugeLifeSignal.Set(1)

	families, err := registry.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, fam := range families {
		byName[fam.GetName()] = fam
	}

	syncedDays, ok := byName["backend_test_server_fit_synced_days"]
	require.True(t, ok)
	assert.Equal(t, float64(7), syncedDays.GetMetric()[0].GetCounter().GetValue())

	insights, ok := byName["backend_test_server_insights_generated"]
	require.True(t, ok)
	assert.Equal(t, float64(1), insights.GetMetric()[0].GetCounter().GetValue())

	syncs, ok := byName["backend_test_server_fit_syncs"]
	require.True(t, ok)
	require.Len(t, syncs.GetMetric(), 1)
	assert.Equal(t, float64(2), syncs.GetMetric()[0].GetCounter().GetValue())

	lifeSignal, ok := byName["backend_test_server_life_signal"]
	require.True(t, ok)
	assert.Equal(t, float64(1), lifeSignal.GetMetric()[0].GetGauge().GetValue())
}
