package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry      *prometheus.Registry
	jobsTotal     *prometheus.CounterVec
	jobDuration   prometheus.Histogram
	activeJobs    prometheus.Gauge
	variantsTotal *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uploader_worker_jobs_total",
			Help: "Scale jobs handled by the worker, by terminal status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uploader_worker_job_duration_seconds",
			Help:    "Wall time spent on one scale job, fetch through emit.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uploader_worker_active_jobs",
			Help: "Scale jobs currently holding a worker slot.",
		}),
		variantsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uploader_worker_variants_total",
			Help: "Variant producer outcomes, by result.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(m.jobsTotal, m.jobDuration, m.activeJobs, m.variantsTotal)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
