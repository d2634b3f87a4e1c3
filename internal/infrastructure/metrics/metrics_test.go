package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/pkg/circuitbreaker"
)

func TestObserveFeedback(t *testing.T) {
	m := New()

	m.ObserveFeedback("anthropic", true, "", 200*time.Millisecond)
	m.ObserveFeedback("anthropic", false, "http_status", time.Second)
	m.ObserveFeedback("anthropic", false, "http_status", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackRequests.WithLabelValues("anthropic", "success", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FeedbackRequests.WithLabelValues("anthropic", "unavailable", "http_status")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FeedbackLatency))
}

func TestObserveBreakerState(t *testing.T) {
	m := New()
	m.ObserveBreakerState("gemini", circuitbreaker.StateOpen)
	assert.Equal(t, float64(circuitbreaker.StateOpen), testutil.ToFloat64(m.BreakerState.WithLabelValues("gemini")))
}

func TestEventHandler(t *testing.T) {
	m := New()
	h := m.EventHandler()
	now := time.Now()

	require.NoError(t, h(shared.NewDatasetLoadedEvent("s", "sample", 5, 1, 5, now)))
	require.NoError(t, h(shared.NewDatasetRejectedEvent("s", "bad.csv", "missing columns", now)))
	require.NoError(t, h(shared.NewFeedbackResolvedEvent("s", "Luis", "fallback", "anthropic", now)))
	require.NoError(t, h(shared.NewReportExportedEvent("s", "csv", 5, 512, false, now)))
	require.NoError(t, h(shared.NewReportExportedEvent("s", "pdf", 5, 0, true, now)))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetsLoaded.WithLabelValues("loaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetsLoaded.WithLabelValues("rejected")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RecordsLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackOutcomes.WithLabelValues("fallback")))
	assert.Equal(t, 512.0, testutil.ToFloat64(m.ExportBytes.WithLabelValues("csv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("pdf", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionEvents.WithLabelValues("report.exported")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/api/v1/sessions/:id", 200, 10*time.Millisecond)
	m.ObservePurged(3)
	m.ObservePurged(0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gradebook_http_requests_total{method="GET",route="/api/v1/sessions/:id",status="200"} 1`)
	assert.Contains(t, string(body), "gradebook_sessions_purged_total 3")
	assert.Contains(t, string(body), "go_goroutines")
}
