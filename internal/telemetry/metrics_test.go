package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Disabled(t *testing.T) {
	m := New(Config{})
	assert.False(t, m.Enabled())
	assert.Nil(t, m.Registry())

	m.RecordStage("merge", "success", time.Second)
	m.RecordSnippet(true, time.Second)
	m.SetSession(1, 2)

	var nilMetrics *Metrics
	nilMetrics.RecordStage("merge", "success", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Record(t *testing.T) {
	m := New(Config{Enabled: true})

	m.RecordStage("merge", "success", 10*time.Millisecond)
	m.RecordStage("merge", "success", 10*time.Millisecond)
	m.RecordStage("merge", "rejected", 0)
	m.RecordSnippet(false, time.Millisecond)
	m.RecordSnippet(true, time.Millisecond)
	m.SetSession(3, 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("merge", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("merge", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snippets.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.datasets))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.dictionaryRow))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(Config{Enabled: true, Namespace: "test"})
	m.RecordStage("prune", "success", time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `test_stage_runs_total{stage="prune",status="success"} 1`)
	assert.Contains(t, string(body), "test_datasets_loaded")
}
