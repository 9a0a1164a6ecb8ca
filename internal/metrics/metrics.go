// Package metrics holds the Prometheus instruments for the interview backend.
// All methods are safe on a nil *Metrics so components can run without them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interview"

// Metrics groups the application's instruments.
type Metrics struct {
	registry *prometheus.Registry

	// ProviderDuration tracks provider call latency by capability, provider and status.
	ProviderDuration *prometheus.HistogramVec
	// ActiveConnections tracks open interview sockets.
	ActiveConnections prometheus.Gauge
	// TranscriptEvents counts appended events by type.
	TranscriptEvents *prometheus.CounterVec
	// TranscriptWriteFailures counts persistence failures by operation.
	TranscriptWriteFailures *prometheus.CounterVec
	// SessionsPruned counts sessions removed by retention.
	SessionsPruned prometheus.Counter
	// RecordingUploads counts archive uploads by status.
	RecordingUploads *prometheus.CounterVec
	// HTTPRequestDuration tracks request latency by method, route and status.
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all instruments on a fresh registry that also
// carries the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Latency of STT, LLM and TTS provider calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"capability", "provider", "status"}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Open interview sockets.",
		}),
		TranscriptEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_events_total",
			Help:      "Transcript events appended, by type.",
		}, []string{"type"}),
		TranscriptWriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_store_failures_total",
			Help:      "Transcript persistence failures, by operation.",
		}, []string{"op"}),
		SessionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_pruned_total",
			Help:      "Sessions removed by retention.",
		}),
		RecordingUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_uploads_total",
			Help:      "Recording archive uploads, by status.",
		}, []string{"status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.ProviderDuration,
		m.ActiveConnections,
		m.TranscriptEvents,
		m.TranscriptWriteFailures,
		m.SessionsPruned,
		m.RecordingUploads,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveProvider records one provider call.
func (m *Metrics) ObserveProvider(capability, provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ProviderDuration.WithLabelValues(capability, provider, status).Observe(d.Seconds())
}

// ConnectionOpened increments the active connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.ActiveConnections.Inc()
	}
}

// ConnectionClosed decrements the active connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.ActiveConnections.Dec()
	}
}

// EventAppended counts one transcript event.
func (m *Metrics) EventAppended(eventType string) {
	if m != nil {
		m.TranscriptEvents.WithLabelValues(eventType).Inc()
	}
}

// StoreFailed counts one transcript persistence failure.
func (m *Metrics) StoreFailed(op string) {
	if m != nil {
		m.TranscriptWriteFailures.WithLabelValues(op).Inc()
	}
}

// Pruned adds n to the pruned sessions counter.
func (m *Metrics) Pruned(n int) {
	if m != nil && n > 0 {
		m.SessionsPruned.Add(float64(n))
	}
}

// RecordingUploaded counts one archive attempt under an outcome label.
func (m *Metrics) RecordingUploaded(status string) {
	if m == nil {
		return
	}
	m.RecordingUploads.WithLabelValues(status).Inc()
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
