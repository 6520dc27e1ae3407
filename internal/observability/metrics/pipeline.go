package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics covers both the ingestion and the query pipeline.
// A nil *PipelineMetrics is valid and records nothing, so agents never
// need to guard their observation calls.
type PipelineMetrics struct {
	registry *prometheus.Registry

	ingestTotal      *prometheus.CounterVec
	ingestDuration   prometheus.Histogram
	agentInvocations *prometheus.CounterVec
	reviewVerdicts   *prometheus.CounterVec
	evidenceCount    prometheus.Histogram
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "scimuse",
			Name:        "ingest_documents_total",
			Help:        "Ingested documents by outcome.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"status"},
	)
	ingestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "scimuse",
			Name:        "ingest_duration_seconds",
			Help:        "Document ingestion duration in seconds.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	agentInvocations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "scimuse",
			Name:        "agent_invocations_total",
			Help:        "Agent invocations by agent and outcome.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"agent", "status"},
	)
	reviewVerdicts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "scimuse",
			Name:        "review_verdicts_total",
			Help:        "Reviewer verdicts by kind.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"verdict"},
	)
	evidenceCount := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "scimuse",
			Name:        "retrieval_evidence_count",
			Help:        "Fused evidence items per sub-task.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(ingestTotal, ingestDuration, agentInvocations, reviewVerdicts, evidenceCount)

	return &PipelineMetrics{
		registry:         registry,
		ingestTotal:      ingestTotal,
		ingestDuration:   ingestDuration,
		agentInvocations: agentInvocations,
		reviewVerdicts:   reviewVerdicts,
		evidenceCount:    evidenceCount,
	}
}

func (m *PipelineMetrics) ObserveIngest(status string, seconds float64) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(status).Inc()
	m.ingestDuration.Observe(seconds)
}

func (m *PipelineMetrics) AgentInvocation(agent, status string) {
	if m == nil {
		return
	}
	m.agentInvocations.WithLabelValues(agent, status).Inc()
}

func (m *PipelineMetrics) ReviewVerdict(verdict string) {
	if m == nil {
		return
	}
	m.reviewVerdicts.WithLabelValues(verdict).Inc()
}

func (m *PipelineMetrics) ObserveEvidence(count int) {
	if m == nil {
		return
	}
	m.evidenceCount.Observe(float64(count))
}

// Handler exposes the registry for the optional metrics listener.
func (m *PipelineMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
