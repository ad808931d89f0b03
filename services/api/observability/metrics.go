package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the viewer API.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec   // labels: route, status
	HTTPRequestDuration *prometheus.HistogramVec // labels: route
	ComputeDuration     *prometheus.HistogramVec // labels: op={extract,aggregate,join}
	CorrelationCache    *prometheus.CounterVec   // labels: result={hit,miss}
	UnmatchedDistricts  prometheus.Counter
	DatasetObservations prometheus.Gauge
	DatasetDistricts    prometheus.Gauge
	GeometryDistricts   prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ldas_viewer",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ldas_viewer",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route"}),
		ComputeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ldas_viewer",
			Name:      "compute_duration_seconds",
			Help:      "Duration of series extraction, correlation aggregation and geometry joins.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"op"}),
		CorrelationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ldas_viewer",
			Name:      "correlation_cache_total",
			Help:      "Correlation cache lookups by result.",
		}, []string{"result"}),
		UnmatchedDistricts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ldas_viewer",
			Name:      "unmatched_districts_total",
			Help:      "Correlated districts with no geometry, summed over choropleth joins.",
		}),
		DatasetObservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ldas_viewer",
			Name:      "dataset_observations",
			Help:      "Observations in the loaded dataset.",
		}),
		DatasetDistricts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ldas_viewer",
			Name:      "dataset_districts",
			Help:      "Distinct districts in the loaded dataset.",
		}),
		GeometryDistricts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ldas_viewer",
			Name:      "geometry_districts",
			Help:      "District polygons in the loaded geometry.",
		}),
	}
}

// NewMetrics creates the collectors and registers them with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.ComputeDuration,
		m.CorrelationCache,
		m.UnmatchedDistricts,
		m.DatasetObservations,
		m.DatasetDistricts,
		m.GeometryDistricts,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build
// as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
