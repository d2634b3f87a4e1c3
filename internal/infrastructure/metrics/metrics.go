// Package metrics exposes Prometheus metrics for dataset loads, feedback
// requests, exports and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/pkg/circuitbreaker"
)

const namespace = "gradebook"

// Metrics holds every collector of the service. Each instance owns its
// registry, so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	DatasetsLoaded    *prometheus.CounterVec
	RecordsLoaded     prometheus.Counter
	FeedbackRequests  *prometheus.CounterVec
	FeedbackLatency   *prometheus.HistogramVec
	FeedbackOutcomes  *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
	Exports           *prometheus.CounterVec
	ExportBytes       *prometheus.CounterVec
	SessionEvents     *prometheus.CounterVec
	SessionsPurged    prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	HTTPRequestLength *prometheus.HistogramVec
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
//
// Metrics:
//   - gradebook_datasets_loaded_total{outcome}     loaded | rejected
//   - gradebook_records_loaded_total
//   - gradebook_feedback_requests_total{provider,outcome,reason}
//   - gradebook_feedback_latency_seconds{provider}
//   - gradebook_feedback_outcomes_total{source}    ai | fallback
//   - gradebook_breaker_state{provider}            0 closed, 1 open, 2 half-open
//   - gradebook_exports_total{format,outcome}
//   - gradebook_export_bytes_total{format}
//   - gradebook_session_events_total{type}
//   - gradebook_sessions_purged_total
//   - gradebook_http_requests_total{method,route,status}
//   - gradebook_http_request_duration_seconds{method,route}
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		DatasetsLoaded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasets_loaded_total",
			Help:      "Dataset load attempts by outcome",
		}, []string{"outcome"}),

		RecordsLoaded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Student records accepted by validation",
		}),

		FeedbackRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_requests_total",
			Help:      "Feedback provider calls by provider and outcome",
		}, []string{"provider", "outcome", "reason"}),

		FeedbackLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feedback_latency_seconds",
			Help:      "Feedback provider call latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"provider"}),

		FeedbackOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_outcomes_total",
			Help:      "Feedback shown to users by source",
		}, []string{"source"}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per feedback provider",
		}, []string{"provider"}),

		Exports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Report exports by format and outcome",
		}, []string{"format", "outcome"}),

		ExportBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_bytes_total",
			Help:      "Bytes written by successful exports",
		}, []string{"format"}),

		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Domain events published by type",
		}, []string{"type"}),

		SessionsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_purged_total",
			Help:      "Expired sessions removed by the purge job",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		HTTPRequestLength: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORDERS
// ══════════════════════════════════════════════════════════════════════════════

// ObserveFeedback implements the feedback client's observer.
func (m *Metrics) ObserveFeedback(provider string, ok bool, reason string, latency time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "unavailable"
	}
	m.FeedbackRequests.WithLabelValues(provider, outcome, reason).Inc()
	m.FeedbackLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// ObserveBreakerState implements the feedback client's observer.
func (m *Metrics) ObserveBreakerState(provider string, state circuitbreaker.State) {
	m.BreakerState.WithLabelValues(provider).Set(float64(state))
}

// ObserveHTTP records one finished request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestLength.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObservePurged counts sessions removed by the purge job.
func (m *Metrics) ObservePurged(n int64) {
	if n > 0 {
		m.SessionsPurged.Add(float64(n))
	}
}

// EventHandler turns domain events into counter updates. Subscribe it on
// the event bus for all event types.
func (m *Metrics) EventHandler() shared.EventHandler {
	return func(event shared.Event) error {
		m.SessionEvents.WithLabelValues(string(event.EventType())).Inc()

		switch e := event.(type) {
		case shared.DatasetLoadedEvent:
			m.DatasetsLoaded.WithLabelValues("loaded").Inc()
			m.RecordsLoaded.Add(float64(e.Records))
		case shared.DatasetRejectedEvent:
			m.DatasetsLoaded.WithLabelValues("rejected").Inc()
		case shared.FeedbackResolvedEvent:
			m.FeedbackOutcomes.WithLabelValues(e.Source).Inc()
		case shared.ReportExportedEvent:
			if e.Failed {
				m.Exports.WithLabelValues(e.Format, "failed").Inc()
			} else {
				m.Exports.WithLabelValues(e.Format, "ok").Inc()
				m.ExportBytes.WithLabelValues(e.Format).Add(float64(e.Bytes))
			}
		}
		return nil
	}
}
