package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jitaccess_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jitaccess_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	joinAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jitaccess_join_attempts_total",
		Help: "Total join attempts by outcome.",
	}, []string{"outcome"}) // self_approved, deferred, denied

	constraintFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jitaccess_constraint_failures_total",
		Help: "Total constraint evaluation failures by constraint name.",
	}, []string{"constraint"})

	provisioningDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jitaccess_provisioning_duration_seconds",
		Help:    "Time to provision a group membership and its IAM bindings.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"}) // success, error

	environmentCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jitaccess_environment_cache_total",
		Help: "Environment cache lookups by result.",
	}, []string{"result"}) // hit, miss
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		requestDuration,
		joinAttemptsTotal,
		constraintFailuresTotal,
		provisioningDuration,
		environmentCacheTotal,
	)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		dur := time.Since(start).Seconds()
		status := strconv.Itoa(rr.statusCode)
		requestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(dur)
	})
}
