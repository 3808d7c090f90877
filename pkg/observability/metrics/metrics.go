package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mediconnect"

var (
	registry = prometheus.NewRegistry()

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Signup and login attempts by actor kind and outcome.",
		},
		[]string{"role", "action", "outcome"},
	)

	prescriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prescriptions_issued_total",
			Help:      "Prescription upserts by outcome.",
		},
		[]string{"outcome"},
	)

	prescriptionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prescription_render_upload_seconds",
			Help:      "Time spent rendering and storing a prescription document.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	directoryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doctor_directory_cache_total",
			Help:      "Doctor directory cache lookups by result.",
		},
		[]string{"result"},
	)

	auditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_total",
			Help:      "Domain events consumed by the audit service.",
		},
		[]string{"event_type", "outcome"},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequestsTotal,
		httpRequestDuration,
		authAttemptsTotal,
		prescriptionsTotal,
		prescriptionDuration,
		directoryCacheTotal,
		auditEventsTotal,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func ObserveAuthAttempt(role, action string, err error) {
	authAttemptsTotal.WithLabelValues(role, action, outcome(err)).Inc()
}

func ObservePrescription(duration time.Duration, err error) {
	prescriptionsTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		prescriptionDuration.Observe(duration.Seconds())
	}
}

func ObserveDirectoryCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	directoryCacheTotal.WithLabelValues(result).Inc()
}

func ObserveAuditEvent(eventType string, err error) {
	auditEventsTotal.WithLabelValues(eventType, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
