package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	queueEnqueued    *prometheus.CounterVec
	rateLimitedTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uploader_api_http_requests_total",
			Help: "HTTP requests handled by the API, by route, method and status code.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uploader_api_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		queueEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uploader_api_queue_enqueued_total",
			Help: "Scale tasks enqueued by the API, by queue name.",
		}, []string{"queue"}),
		rateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uploader_api_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}

	registry.MustRegister(m.requestsTotal, m.requestDuration, m.queueEnqueued, m.rateLimitedTotal)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses upload IDs so the metric cardinality stays bounded.
func routeLabel(path string) string {
	if path == "/v1/uploads" || path == "/healthz" {
		return path
	}
	if strings.HasPrefix(path, "/v1/uploads/") {
		if strings.HasSuffix(path, "/start") {
			return "/v1/uploads/{id}/start"
		}
		return "/v1/uploads/{id}"
	}
	return "other"
}
