package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics("wakeguard")

	m.TriggersTotal.WithLabelValues("quota_reset", "success").Inc()
	m.TriggersTotal.WithLabelValues("quota_reset", "success").Inc()
	m.TriggerDuration.WithLabelValues("gemini-pro").Observe(1.2)
	m.SnapshotFetchErrors.Inc()

	body := scrape(t, m)
	assert.Contains(t, body, `wakeguard_triggers_total{outcome="success",source="quota_reset"} 2`)
	assert.Contains(t, body, "wakeguard_trigger_duration_seconds_count")
	assert.Contains(t, body, "wakeguard_snapshot_fetch_errors_total 1")
}

func TestObserveSnapshot(t *testing.T) {
	m := NewMetrics("wakeguard")

	m.ObserveSnapshot(map[string]float64{"m1": 100, "m2": 37.5}, 1)

	body := scrape(t, m)
	assert.Contains(t, body, `wakeguard_model_remaining_pct{model="m1"} 100`)
	assert.Contains(t, body, `wakeguard_model_remaining_pct{model="m2"} 37.5`)
	assert.Contains(t, body, "wakeguard_unused_models_detected 1")
}

func TestSeparateRegistries(t *testing.T) {
	a := NewMetrics("wakeguard")
	b := NewMetrics("wakeguard")

	a.SnapshotFetchErrors.Inc()

	assert.Contains(t, scrape(t, a), "wakeguard_snapshot_fetch_errors_total 1")
	assert.Contains(t, scrape(t, b), "wakeguard_snapshot_fetch_errors_total 0")
}
