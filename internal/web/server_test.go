package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakeguard/wakeguard/internal/config"
	"github.com/wakeguard/wakeguard/internal/logging"
	"github.com/wakeguard/wakeguard/internal/metrics"
	"github.com/wakeguard/wakeguard/internal/models"
	"github.com/wakeguard/wakeguard/internal/statestore"
)

func newTestServer(t *testing.T) (*Server, *statestore.Store) {
	t.Helper()
	state, err := statestore.NewStore(t.TempDir())
	require.NoError(t, err)

	logger := logging.NewLogger(logging.WithOutput(io.Discard))
	srv := NewServer(config.Default().Server, state, nil, metrics.NewMetrics("wakeguard"), logger)
	return srv, state
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHistoryEndpoint(t *testing.T) {
	srv, state := newTestServer(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, state.AppendTriggerRecords(models.TriggerRecord{
			ID:        "r",
			Timestamp: time.Now(),
			Models:    []string{"m"},
		}))
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/history?limit=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count   int                    `json:"count"`
		History []models.TriggerRecord `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)
	assert.Len(t, body.History, 3)
}

func TestLastTriggerEndpoint(t *testing.T) {
	srv, state := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/last-trigger")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, state.AppendTriggerRecords(models.TriggerRecord{ID: "latest"}))

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/last-trigger")
	require.Equal(t, http.StatusOK, rec.Code)

	var record models.TriggerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "latest", record.ID)
}

func TestConfigEndpoint(t *testing.T) {
	srv, state := newTestServer(t)

	cfg := models.DefaultWakeupConfig()
	cfg.Enabled = true
	cfg.SelectedModels = []string{"m1"}
	require.NoError(t, state.SaveWakeupConfig(cfg))

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/config")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.WakeupConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Enabled)
	assert.Equal(t, []string{"m1"}, got.SelectedModels)
}

func TestSnapshotsEndpointWithoutStore(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/snapshots")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wakeguard_")
}
