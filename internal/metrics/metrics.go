// Package metrics exposes pipeline counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the service exports.
var Registry = prometheus.NewRegistry()

var (
	// Chunks counts processed chunks by result: parsed, parse_failed, llm_failed.
	Chunks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "termsheet",
		Name:      "chunks_total",
		Help:      "Chunks processed, by result.",
	}, []string{"result"})

	// LLMCalls counts gateway calls by outcome.
	LLMCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "termsheet",
		Name:      "llm_calls_total",
		Help:      "LLM gateway calls, by outcome.",
	}, []string{"outcome"})

	// LLMRetries counts retry attempts against the LLM endpoint.
	LLMRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "termsheet",
		Name:      "llm_retries_total",
		Help:      "Retries issued against the LLM endpoint.",
	})

	// Highlights counts annotations written into documents.
	Highlights = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "termsheet",
		Name:      "highlights_total",
		Help:      "Highlight annotations added to documents.",
	})

	// LocateMisses counts discrepancies whose excerpt was not found.
	LocateMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "termsheet",
		Name:      "locate_misses_total",
		Help:      "Discrepancies whose text could not be located in the document.",
	})

	// StageDuration observes how long each pipeline stage takes.
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "termsheet",
		Name:      "stage_duration_seconds",
		Help:      "Pipeline stage duration.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"stage", "status"})
)

func init() {
	Registry.MustRegister(Chunks, LLMCalls, LLMRetries, Highlights, LocateMisses, StageDuration)
}

// ObserveStage records a stage duration.
func ObserveStage(stage, status string, d time.Duration) {
	StageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
