package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordReportIngested(source, status string)
	RecordClusterProcessed(outcome string)
	RecordAlertTransition(transition string)
	RecordEnrichment(status string)
	RecordPipelineRun(source string, duration time.Duration)
	RecordRepositoryOp(operation, status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordReportIngested(source, status string)              {}
func (m *NoOpMetrics) RecordClusterProcessed(outcome string)                   {}
func (m *NoOpMetrics) RecordAlertTransition(transition string)                 {}
func (m *NoOpMetrics) RecordEnrichment(status string)                          {}
func (m *NoOpMetrics) RecordPipelineRun(source string, duration time.Duration) {}
func (m *NoOpMetrics) RecordRepositoryOp(operation, status string)             {}
func (m *NoOpMetrics) Handler() http.Handler                                   { return http.NotFoundHandler() }

// PromMetrics implements Metrics on a dedicated Prometheus registry.
type PromMetrics struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	reportsIngested *prometheus.CounterVec
	clusters        *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	enrichments     *prometheus.CounterVec
	pipelineRuns    *prometheus.HistogramVec
	repositoryOps   *prometheus.CounterVec
}

// NewPromMetrics creates and registers the full metric set.
func NewPromMetrics() *PromMetrics {
	m := &PromMetrics{registry: prometheus.NewRegistry()}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stayguard", Name: "http_requests_total",
		Help: "HTTP requests by method, endpoint and status code",
	}, []string{"method", "endpoint", "code"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stayguard", Name: "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	m.reportsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stayguard", Name: "reports_ingested_total",
		Help: "Disruption reports ingested by source and status",
	}, []string{"source", "status"})

	m.clusters = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stayguard", Name: "clusters_processed_total",
		Help: "Disruption clusters processed by outcome (created, merged, error)",
	}, []string{"outcome"})

	m.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stayguard", Name: "alert_transitions_total",
		Help: "Alert lifecycle transitions (approved, expired)",
	}, []string{"transition"})

	m.enrichments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stayguard", Name: "enrichments_total",
		Help: "LLM enrichment calls by status (success, fallback)",
	}, []string{"status"})

	m.pipelineRuns = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stayguard", Name: "pipeline_run_duration_seconds",
		Help:    "Ingestion pipeline run duration by source",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"source"})

	m.repositoryOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stayguard", Name: "repository_ops_total",
		Help: "Alert repository operations by operation and status",
	}, []string{"operation", "status"})

	m.registry.MustRegister(
		m.httpRequests, m.httpDuration, m.reportsIngested, m.clusters,
		m.transitions, m.enrichments, m.pipelineRuns, m.repositoryOps,
	)

	return m
}

func (m *PromMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, endpoint, http.StatusText(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *PromMetrics) RecordReportIngested(source, status string) {
	m.reportsIngested.WithLabelValues(source, status).Inc()
}

func (m *PromMetrics) RecordClusterProcessed(outcome string) {
	m.clusters.WithLabelValues(outcome).Inc()
}

func (m *PromMetrics) RecordAlertTransition(transition string) {
	m.transitions.WithLabelValues(transition).Inc()
}

func (m *PromMetrics) RecordEnrichment(status string) {
	m.enrichments.WithLabelValues(status).Inc()
}

func (m *PromMetrics) RecordPipelineRun(source string, duration time.Duration) {
	m.pipelineRuns.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *PromMetrics) RecordRepositoryOp(operation, status string) {
	m.repositoryOps.WithLabelValues(operation, status).Inc()
}

func (m *PromMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init switches the global instance to the Prometheus implementation.
func Init() {
	globalMetrics = NewPromMetrics()
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordReportIngested records report ingestion metrics
func RecordReportIngested(source, status string) {
	globalMetrics.RecordReportIngested(source, status)
}

// RecordClusterProcessed records cluster processing outcomes
func RecordClusterProcessed(outcome string) {
	globalMetrics.RecordClusterProcessed(outcome)
}

// RecordAlertTransition records alert lifecycle transitions
func RecordAlertTransition(transition string) {
	globalMetrics.RecordAlertTransition(transition)
}

// RecordEnrichment records LLM enrichment call outcomes
func RecordEnrichment(status string) {
	globalMetrics.RecordEnrichment(status)
}

// RecordPipelineRun records pipeline run metrics
func RecordPipelineRun(source string, duration time.Duration) {
	globalMetrics.RecordPipelineRun(source, duration)
}

// RecordRepositoryOp records repository operation metrics
func RecordRepositoryOp(operation, status string) {
	globalMetrics.RecordRepositoryOp(operation, status)
}
