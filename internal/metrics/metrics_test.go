// internal/metrics/metrics_test.go - Tests for the Prometheus observer
package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TileFetched("image", "ok", 2048, 15*time.Millisecond)
	m.TileFetched("image", "ok", 1024, 5*time.Millisecond)
	m.TileFetched("image", "http_error", 0, time.Millisecond)
	m.FeaturesMerged(10, 3)
	m.FilterSkipped("min_captured_at")
	m.EntityFetched("image", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tileFetches.WithLabelValues("image", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tileFetches.WithLabelValues("image", "http_error")))
	assert.Equal(t, 3072.0, testutil.ToFloat64(m.tileBytes.WithLabelValues("image")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.merged))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.deduplicated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.filterSkips.WithLabelValues("min_captured_at")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entityFetches.WithLabelValues("image", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.tileDuration))
}

func TestMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.FilterSkipped("look_at")

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `mapillary_filter_skips_total{filter="look_at"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
