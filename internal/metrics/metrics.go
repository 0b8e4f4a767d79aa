package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "templatesmith_generations_total",
		Help: "Template generation requests by detail level and outcome.",
	}, []string{"detail_level", "status"})

	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "templatesmith_generation_duration_seconds",
		Help:    "End-to-end pipeline duration per request.",
		Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
	}, []string{"detail_level"})

	LLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "templatesmith_llm_calls_total",
		Help: "Provider call attempts by outcome (ok, error, timeout).",
	}, []string{"provider", "outcome"})

	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "templatesmith_llm_call_duration_seconds",
		Help:    "Duration of a single provider call attempt.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"provider"})

	LLMRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "templatesmith_llm_retries_total",
		Help: "Provider calls retried after a transient failure.",
	}, []string{"provider"})

	HistoryWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "templatesmith_history_write_errors_total",
		Help: "Generation history inserts that failed.",
	})
)
