// Package observability holds the Prometheus metrics for provider calls,
// routing decisions and ingestion. A nil *Metrics is valid and records nothing.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/ai"
)

const metricsNamespace = "school_ai"

type Metrics struct {
	// ProviderCallsTotal counts upstream model calls.
	// Labels: provider, status (success, error)
	ProviderCallsTotal *prometheus.CounterVec

	// ProviderLatencySeconds measures upstream model call duration.
	// Labels: provider
	ProviderLatencySeconds *prometheus.HistogramVec

	// RouteChoicesTotal counts router decisions.
	// Labels: choice
	RouteChoicesTotal *prometheus.CounterVec

	// IngestChunksTotal counts chunk outcomes during ingestion.
	// Labels: outcome (inserted, failed)
	IngestChunksTotal *prometheus.CounterVec

	// IngestJobsTotal counts finished async ingestion jobs.
	// Labels: status (succeeded, failed)
	IngestJobsTotal *prometheus.CounterVec
}

// New registers all metrics on reg. Pass prometheus.NewRegistry() in tests to
// avoid duplicate registration on the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProviderCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "provider",
				Name:      "calls_total",
				Help:      "Upstream model calls by provider and status",
			},
			[]string{"provider", "status"},
		),
		ProviderLatencySeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "provider",
				Name:      "latency_seconds",
				Help:      "Upstream model call duration in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
			},
			[]string{"provider"},
		),
		RouteChoicesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "router",
				Name:      "choices_total",
				Help:      "Routing decisions by chosen strategy",
			},
			[]string{"choice"},
		),
		IngestChunksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ingest",
				Name:      "chunks_total",
				Help:      "Ingested chunk outcomes",
			},
			[]string{"outcome"},
		),
		IngestJobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ingest",
				Name:      "jobs_total",
				Help:      "Finished async ingestion jobs by status",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) ObserveProviderCall(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProviderCallsTotal.WithLabelValues(provider, status).Inc()
	m.ProviderLatencySeconds.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveRoute(choice string) {
	if m == nil {
		return
	}
	m.RouteChoicesTotal.WithLabelValues(choice).Inc()
}

func (m *Metrics) ObserveChunks(inserted, failed int) {
	if m == nil {
		return
	}
	m.IngestChunksTotal.WithLabelValues("inserted").Add(float64(inserted))
	m.IngestChunksTotal.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.IngestJobsTotal.WithLabelValues(status).Inc()
}

// ProviderWrapper is an ai.Wrapper that times every Chat call.
func (m *Metrics) ProviderWrapper() ai.Wrapper {
	return func(name string, p ai.Provider) ai.Provider {
		if m == nil {
			return p
		}
		return &timedProvider{name: name, inner: p, m: m}
	}
}

type timedProvider struct {
	name  string
	inner ai.Provider
	m     *Metrics
}

func (t *timedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	start := time.Now()
	reply, err := t.inner.Chat(ctx, messages)
	t.m.ObserveProviderCall(t.name, time.Since(start), err)
	return reply, err
}
