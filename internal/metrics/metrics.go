// Package metrics exposes Prometheus instrumentation for the alert engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Evaluation metrics
	CandidatesEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glucoguard_candidates_evaluated_total",
			Help: "Total candidates produced by rule evaluation",
		},
		[]string{"rule"},
	)

	EvaluationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glucoguard_evaluation_errors_total",
			Help: "Total rule evaluation errors (tick abandoned)",
		},
		[]string{"rule"},
	)

	TickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glucoguard_tick_duration_seconds",
			Help:    "Duration of one rule evaluation tick",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"rule"},
	)

	// Pipeline metrics
	CandidatesSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glucoguard_candidates_suppressed_total",
			Help: "Total candidates refused by the dedup gate (inside cooldown)",
		},
		[]string{"rule"},
	)

	CandidatesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glucoguard_candidates_rejected_total",
			Help: "Total candidates rejected by preference resolution",
		},
		[]string{"rule", "reason"}, // reason: no_settings, disabled, no_token
	)

	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glucoguard_dispatch_outcomes_total",
			Help: "Total dispatch attempts by recorded outcome",
		},
		[]string{"rule", "outcome"}, // outcome: sent, failed, mock
	)

	// Retention metrics
	RecordsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glucoguard_notification_records_pruned_total",
			Help: "Total notification records removed by retention cleanup",
		},
	)
)
