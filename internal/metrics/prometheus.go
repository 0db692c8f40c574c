package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for the content cache.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Counters
	lookupsTotal       *prometheus.CounterVec
	loaderErrorsTotal  *prometheus.CounterVec
	invalidationsTotal *prometheus.CounterVec
	warmTotal          *prometheus.CounterVec
	reconnectsTotal    *prometheus.CounterVec

	// Histograms
	loaderDuration *prometheus.HistogramVec
	storeDuration  *prometheus.HistogramVec

	// Gauges
	backendAvailability *prometheus.GaugeVec
}

// Default histogram buckets for loader duration (in milliseconds)
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

var promMetrics *PrometheusMetrics

// availabilityStates are the label values of the availability gauge.
var availabilityStates = []string{"connected", "connecting", "unavailable"}

// InitPrometheus initializes the Prometheus metrics subsystem
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by content type and result (hit, miss)",
			},
			[]string{"content_type", "result"},
		),

		loaderErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "loader_errors_total",
				Help:      "Source-of-truth loader failures by content type",
			},
			[]string{"content_type"},
		),

		invalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "invalidations_total",
				Help:      "Cache invalidations by scope (key, pattern, type, all) and effectiveness",
			},
			[]string{"scope", "effective"},
		),

		warmTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "warm_total",
				Help:      "Per content type warm attempts by status",
			},
			[]string{"content_type", "status"},
		),

		reconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kvstore",
				Name:      "reconnect_attempts_total",
				Help:      "Key-value backend reconnect attempts by outcome",
			},
			[]string{"outcome"},
		),

		loaderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "loader_duration_milliseconds",
				Help:      "Duration of source-of-truth loads on cache miss",
				Buckets:   buckets,
			},
			[]string{"content_type"},
		),

		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kvstore",
				Name:      "operation_duration_milliseconds",
				Help:      "Latency of key-value backend operations",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 25, 50, 100, 250},
			},
			[]string{"operation"},
		),

		backendAvailability: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "kvstore",
				Name:      "availability",
				Help:      "1 for the current backend availability state, 0 otherwise",
			},
			[]string{"state"},
		),
	}

	registry.MustRegister(
		pm.lookupsTotal,
		pm.loaderErrorsTotal,
		pm.invalidationsTotal,
		pm.warmTotal,
		pm.reconnectsTotal,
		pm.loaderDuration,
		pm.storeDuration,
		pm.backendAvailability,
	)

	promMetrics = pm
}

// RecordLookup records a cache hit or miss for a content type.
func RecordLookup(contentType string, hit bool) {
	if promMetrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	promMetrics.lookupsTotal.WithLabelValues(contentType, result).Inc()
}

// RecordLoad records a loader invocation and its duration.
func RecordLoad(contentType string, durationMs float64, success bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.loaderDuration.WithLabelValues(contentType).Observe(durationMs)
	if !success {
		promMetrics.loaderErrorsTotal.WithLabelValues(contentType).Inc()
	}
}

// RecordInvalidation records an invalidation of the given scope.
func RecordInvalidation(scope string, effective bool) {
	if promMetrics == nil {
		return
	}
	eff := "true"
	if !effective {
		eff = "false"
	}
	promMetrics.invalidationsTotal.WithLabelValues(scope, eff).Inc()
}

// RecordWarm records the warm outcome of one content type.
func RecordWarm(contentType, status string) {
	if promMetrics == nil {
		return
	}
	promMetrics.warmTotal.WithLabelValues(contentType, status).Inc()
}

// RecordReconnect records a reconnect attempt outcome ("success", "failed", "gave_up").
func RecordReconnect(outcome string) {
	if promMetrics == nil {
		return
	}
	promMetrics.reconnectsTotal.WithLabelValues(outcome).Inc()
}

// RecordStoreOperation records the latency of a key-value backend call.
func RecordStoreOperation(operation string, durationMs float64) {
	if promMetrics == nil {
		return
	}
	promMetrics.storeDuration.WithLabelValues(operation).Observe(durationMs)
}

// SetBackendAvailability marks state as the current backend availability.
func SetBackendAvailability(state string) {
	if promMetrics == nil {
		return
	}
	for _, s := range availabilityStates {
		v := 0.0
		if s == state {
			v = 1
		}
		promMetrics.backendAvailability.WithLabelValues(s).Set(v)
	}
}

// PrometheusHandler returns the HTTP handler for the Prometheus metrics endpoint
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "prometheus metrics not initialized", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the Prometheus registry for custom collectors
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
