package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRefresh(t *testing.T) {
	m := New("test")

	m.RecordRefresh("succeeded", 200*time.Millisecond, 10, 2, 7, 3)
	m.RecordRefresh("fetch_empty", 10*time.Millisecond, 0, 0, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshRunsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshRunsTotal.WithLabelValues("fetch_empty")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.FetchedEntriesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SkippedItemsTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.UpsertedEntriesTotal.WithLabelValues("insert")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.UpsertedEntriesTotal.WithLabelValues("update")))
}

func TestIndependentRegistries(t *testing.T) {
	a := New("test")
	b := New("test")

	a.RecordHTTPRequest("GET", "/", 200, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.HTTPRequestsTotal.WithLabelValues("GET", "/", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.HTTPRequestsTotal.WithLabelValues("GET", "/", "200")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("coinboard")
	m.RecordRefresh("store_failed", time.Second, 1, 0, 0, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `coinboard_refresh_runs_total{status="store_failed"} 1`)
}
