package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics carries every collector for the single-process pipeline: job
// lifecycle observations plus HTTP server traffic.
type Metrics struct {
	registry *prometheus.Registry

	jobsTotal      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobsInFlight   prometheus.Gauge
	laneWait       *prometheus.HistogramVec
	pollAttempts   *prometheus.HistogramVec
	parseLevel     *prometheus.CounterVec

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "motiondex",
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Finished analysis jobs by terminal status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "motiondex",
			Subsystem: "pipeline",
			Name:      "job_duration_seconds",
			Help:      "Analysis job duration in seconds by terminal status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 180, 300, 600},
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "motiondex",
			Subsystem: "pipeline",
			Name:      "jobs_in_flight",
			Help:      "Jobs currently occupying the worker lane (0 or 1).",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	laneWait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "motiondex",
			Subsystem: "pipeline",
			Name:      "lane_wait_seconds",
			Help:      "Delay between submission and admission to the lane.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	pollAttempts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "motiondex",
			Subsystem: "provider",
			Name:      "poll_attempts",
			Help:      "Readiness polls issued per upload before a terminal answer.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 30},
		},
		[]string{"service"},
	)
	parseLevel := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "motiondex",
			Subsystem: "normalizer",
			Name:      "parse_level_total",
			Help:      "Normalizer outcomes by parse strategy that succeeded.",
		},
		[]string{"service", "level"},
	)

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "motiondex",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "motiondex",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "motiondex",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		jobsTotal, jobDuration, jobsInFlight, laneWait, pollAttempts, parseLevel,
		requestTotal, requestDuration, requestInFlight,
	)

	return &Metrics{
		registry:        registry,
		jobsTotal:       jobsTotal,
		jobDuration:     jobDuration,
		jobsInFlight:    jobsInFlight,
		laneWait:        laneWait,
		pollAttempts:    pollAttempts,
		parseLevel:      parseLevel,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) StartJob() {
	m.jobsInFlight.Inc()
}

func (m *Metrics) FinishJob(service, status string, duration time.Duration) {
	m.jobsInFlight.Dec()
	m.jobsTotal.WithLabelValues(service, status).Inc()
	m.jobDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *Metrics) ObserveLaneWait(service string, wait time.Duration) {
	if wait < 0 {
		return
	}
	m.laneWait.WithLabelValues(service).Observe(wait.Seconds())
}

func (m *Metrics) ObservePollAttempts(service string, attempts int) {
	m.pollAttempts.WithLabelValues(service).Observe(float64(attempts))
}

func (m *Metrics) RecordParseLevel(service, level string) {
	m.parseLevel.WithLabelValues(service, level).Inc()
}
