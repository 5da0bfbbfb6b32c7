package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Authorization-plane metrics. Denial kinds stay distinct here even though
// the HTTP boundary collapses them to a generic message, so operators can
// tell a broken actor configuration from an intrusion attempt.
var (
	policyDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Policy engine decisions by outcome.",
		},
		[]string{"role", "outcome"},
	)

	superadminLogins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superadmin_login_attempts_total",
			Help: "Superadmin login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	lockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "superadmin_lockouts_total",
		Help: "Lockouts triggered by repeated authentication failures.",
	})

	sessionsReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "superadmin_sessions_reaped_total",
		Help: "Expired superadmin sessions removed by the reaper.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		policyDecisions, superadminLogins, lockoutsTotal, sessionsReaped,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePolicyDecision records a policy engine outcome.
func ObservePolicyDecision(role, outcome string) {
	policyDecisions.WithLabelValues(role, outcome).Inc()
}

// ObserveSuperadminLogin records a login attempt outcome.
func ObserveSuperadminLogin(outcome string) {
	superadminLogins.WithLabelValues(outcome).Inc()
}

// ObserveLockout records a triggered lockout.
func ObserveLockout() { lockoutsTotal.Inc() }

// ObserveSessionsReaped records sessions removed by an expiry sweep.
func ObserveSessionsReaped(n int) { sessionsReaped.Add(float64(n)) }

// Instrument wraps a handler with request counters and latency histograms.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metrics labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
