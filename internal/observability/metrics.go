// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package observability holds the Prometheus instruments shared by the
// retrieval, memory and answer paths.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	FragmentsIngested *prometheus.CounterVec
	EmbeddingDegraded *prometheus.CounterVec
	Retrievals        prometheus.Counter
	EmptyRetrievals   prometheus.Counter
	Answers           *prometheus.CounterVec
	Compactions       *prometheus.CounterVec
	ActiveDocuments   prometheus.Gauge
	GenerateLatency   prometheus.Histogram
	GuardMatches      *prometheus.CounterVec
}

// NewMetrics registers the instruments on a fresh registry together with the
// Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FragmentsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_ingested_total",
			Help:      "Fragments written to the embedding store by kind.",
		}, []string{"kind"}),
		EmbeddingDegraded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_degraded_total",
			Help:      "Embedding calls that fell back to a zero vector, by provider.",
		}, []string{"provider"}),
		Retrievals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Similarity searches executed.",
		}),
		EmptyRetrievals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_retrievals_total",
			Help:      "Searches over a document with no fragments.",
		}),
		Answers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answer requests by outcome.",
		}, []string{"outcome"}),
		Compactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_compactions_total",
			Help:      "Conversation compactions by outcome.",
		}, []string{"outcome"}),
		ActiveDocuments: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_active_documents",
			Help:      "Documents with live conversation state.",
		}),
		GenerateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generate_latency_ms",
			Help:      "Latency of generator calls in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		}),
		GuardMatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_matches_total",
			Help:      "Content guard rule matches by stage and rule.",
		}, []string{"stage", "rule"}),
	}
}

func (m *Metrics) IncFragment(kind string) {
	if m == nil {
		return
	}
	m.FragmentsIngested.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncEmbeddingDegraded(provider string) {
	if m == nil {
		return
	}
	m.EmbeddingDegraded.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncRetrieval(empty bool) {
	if m == nil {
		return
	}
	m.Retrievals.Inc()
	if empty {
		m.EmptyRetrievals.Inc()
	}
}

func (m *Metrics) IncAnswer(outcome string) {
	if m == nil {
		return
	}
	m.Answers.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCompaction(outcome string) {
	if m == nil {
		return
	}
	m.Compactions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetActiveDocuments(n int) {
	if m == nil {
		return
	}
	m.ActiveDocuments.Set(float64(n))
}

func (m *Metrics) ObserveGenerateLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.GenerateLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncGuardMatch(stage, rule string) {
	if m == nil {
		return
	}
	m.GuardMatches.WithLabelValues(stage, rule).Inc()
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})
}
