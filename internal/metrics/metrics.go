// internal/metrics/metrics.go - Prometheus collectors for client activity
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valpere/mapillary/pkg/mapillary"
)

const namespace = "mapillary"

var _ mapillary.Observer = (*Metrics)(nil)

// Metrics records tile fetches, merges, filter skips and entity lookups.
// It is passed to the client with mapillary.WithObserver.
type Metrics struct {
	tileFetches   *prometheus.CounterVec
	tileDuration  *prometheus.HistogramVec
	tileBytes     *prometheus.CounterVec
	merged        prometheus.Counter
	deduplicated  prometheus.Counter
	filterSkips   *prometheus.CounterVec
	entityFetches *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tileFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_fetch_total",
			Help:      "Tile requests by layer and outcome.",
		}, []string{"layer", "outcome"}),
		tileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tile_fetch_duration_seconds",
			Help:      "Latency of tile requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"layer"}),
		tileBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_bytes_total",
			Help:      "Tile payload bytes received.",
		}, []string{"layer"}),
		merged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_merged_total",
			Help:      "Distinct features accumulated by multi-tile queries.",
		}),
		deduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_deduplicated_total",
			Help:      "Features dropped because another tile already supplied them.",
		}),
		filterSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_skips_total",
			Help:      "Filters skipped because their parameters were malformed.",
		}, []string{"filter"}),
		entityFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_fetch_total",
			Help:      "Graph entity requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		m.tileFetches,
		m.tileDuration,
		m.tileBytes,
		m.merged,
		m.deduplicated,
		m.filterSkips,
		m.entityFetches,
	)
	return m
}

// TileFetched implements mapillary.Observer
func (m *Metrics) TileFetched(layer, outcome string, bytes int, elapsed time.Duration) {
	m.tileFetches.WithLabelValues(layer, outcome).Inc()
	m.tileDuration.WithLabelValues(layer).Observe(elapsed.Seconds())
	if bytes > 0 {
		m.tileBytes.WithLabelValues(layer).Add(float64(bytes))
	}
}

// FeaturesMerged implements mapillary.Observer
func (m *Metrics) FeaturesMerged(added, duplicates int) {
	m.merged.Add(float64(added))
	m.deduplicated.Add(float64(duplicates))
}

// FilterSkipped implements mapillary.Observer
func (m *Metrics) FilterSkipped(name string) {
	m.filterSkips.WithLabelValues(name).Inc()
}

// EntityFetched implements mapillary.Observer
func (m *Metrics) EntityFetched(kind, outcome string) {
	m.entityFetches.WithLabelValues(kind, outcome).Inc()
}

// NewRegistry returns a registry carrying the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics of reg in the Prometheus text format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
