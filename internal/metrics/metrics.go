package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	analysesTotal     *prometheus.CounterVec
	auditsTotal       *prometheus.CounterVec
	auditDuration     prometheus.Histogram
	narrativesTotal   *prometheus.CounterVec
	narrativeDuration prometheus.Histogram
	historySize       prometheus.Gauge
	snapshotsPruned   prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whaleaudit_analyses_total",
			Help: "Total number of analysis snapshots produced",
		},
		[]string{"symbol"},
	)
	r.auditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whaleaudit_audits_total",
			Help: "Total number of audits by terminal status",
		},
		[]string{"status"},
	)
	r.auditDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whaleaudit_audit_duration_seconds",
			Help:    "Audit duration in seconds, fetch plus replay",
			Buckets: prometheus.DefBuckets,
		},
	)
	r.narrativesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whaleaudit_narratives_total",
			Help: "Total number of post-mortem narrative requests",
		},
		[]string{"status"},
	)
	r.narrativeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whaleaudit_narrative_duration_seconds",
			Help:    "Post-mortem narrative duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	r.historySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whaleaudit_history_snapshots",
			Help: "Number of snapshots currently retained",
		},
	)
	r.snapshotsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whaleaudit_snapshots_pruned_total",
			Help: "Total number of snapshots removed by retention",
		},
	)

	reg.MustRegister(r.analysesTotal)
	reg.MustRegister(r.auditsTotal)
	reg.MustRegister(r.auditDuration)
	reg.MustRegister(r.narrativesTotal)
	reg.MustRegister(r.narrativeDuration)
	reg.MustRegister(r.historySize)
	reg.MustRegister(r.snapshotsPruned)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordAnalysis records a produced analysis snapshot.
func (r *Registry) RecordAnalysis(symbol string) {
	r.analysesTotal.WithLabelValues(symbol).Inc()
}

// RecordAudit records a completed audit run.
func (r *Registry) RecordAudit(status string, duration float64) {
	r.auditsTotal.WithLabelValues(status).Inc()
	r.auditDuration.Observe(duration)
}

// RecordNarrative records a post-mortem narrative attempt.
func (r *Registry) RecordNarrative(status string, duration float64) {
	r.narrativesTotal.WithLabelValues(status).Inc()
	r.narrativeDuration.Observe(duration)
}

// SetHistorySize sets the retained snapshot count.
func (r *Registry) SetHistorySize(n int) {
	r.historySize.Set(float64(n))
}

// RecordPruned counts snapshots dropped by retention.
func (r *Registry) RecordPruned(n int) {
	r.snapshotsPruned.Add(float64(n))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
