// Package metrics exposes prometheus instrumentation for store operations
// and the HTTP surface. Collectors are registered on the default registry
// and served via promhttp at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contextdb_store_ops_total",
		Help: "Conversation store operations by backend, op and outcome.",
	}, []string{"backend", "op", "status"})

	storeOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contextdb_store_op_duration_seconds",
		Help:    "Latency of conversation store operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contextdb_http_requests_total",
		Help: "HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contextdb_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// ObserveStoreOp records one store operation. Call it from a defer with the
// operation start time.
func ObserveStoreOp(backend, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	storeOps.WithLabelValues(backend, op, status).Inc()
	storeOpDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// normalizePath maps a request path onto the fixed route set. Anything not
// served by the router collapses to one bucket so scanners probing random
// paths cannot mint unbounded label values.
func normalizePath(p string) string {
	switch p {
	case "/", "/context", "/context/download", "/admin/contexts",
		"/healthz", "/readyz", "/metrics", "/openapi.yaml":
		return p
	}
	if strings.HasPrefix(p, "/docs/") {
		return "/docs/"
	}
	return "other"
}

// Middleware instruments every request with a count and a latency sample,
// labeled by the normalized route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		path := normalizePath(r.URL.Path)
		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(srw.status)).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
