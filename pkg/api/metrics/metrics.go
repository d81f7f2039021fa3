// Package metrics exposes prometheus counters for the analysis API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finsight/pkg/core/cache"
	"finsight/pkg/core/pipeline"
)

// Metrics holds the collectors of one API instance on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	formats       *prometheus.CounterVec
	qualityLevels *prometheus.CounterVec
	failures      *prometheus.CounterVec
	cacheHits     prometheus.CounterFunc
	cacheMisses   prometheus.CounterFunc
}

// New registers every collector. stats may be nil when no cache is used.
func New(stats func() cache.Stats) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finsight",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "finsight",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		formats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finsight",
			Name:      "payload_formats_total",
			Help:      "Analyzed payloads by detected format.",
		}, []string{"format"}),
		qualityLevels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finsight",
			Name:      "quality_levels_total",
			Help:      "Quality assessments by level.",
		}, []string{"level"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finsight",
			Name:      "analysis_failures_total",
			Help:      "Analyses that ended with an error, by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.formats, m.qualityLevels, m.failures)

	if stats != nil {
		m.cacheHits = prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "finsight",
			Name:      "cache_hits_total",
			Help:      "Result cache hits.",
		}, func() float64 { return float64(stats().Hits) })
		m.cacheMisses = prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "finsight",
			Name:      "cache_misses_total",
			Help:      "Result cache misses.",
		}, func() float64 { return float64(stats().Misses) })
		m.registry.MustRegister(m.cacheHits, m.cacheMisses)
	}
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveResult records the format, quality level and failure kind of res.
func (m *Metrics) ObserveResult(res *pipeline.Result) {
	if m == nil || res == nil {
		return
	}
	m.formats.WithLabelValues(string(res.Diagnostics.DataFormatDetected)).Inc()
	switch {
	case res.ParseFailed():
		m.failures.WithLabelValues("parse").Inc()
		return
	case res.Error != "":
		m.failures.WithLabelValues("no_usable_data").Inc()
	}
	m.qualityLevels.WithLabelValues(res.Quality.QualityLevel).Inc()
}

// Wrap counts requests and latency for endpoint.
func (m *Metrics) Wrap(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		m.requests.WithLabelValues(endpoint, strconv.Itoa(rec.code)).Inc()
		m.duration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}
