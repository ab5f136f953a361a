// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptshield_submissions_total",
			Help: "Submissions by terminal outcome",
		},
		[]string{"outcome"},
	)

	Detections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptshield_detections_total",
			Help: "Sensitive-data detections by kind",
		},
		[]string{"kind"},
	)

	Attacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptshield_attacks_total",
			Help: "Attack signature matches by category",
		},
		[]string{"category"},
	)

	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptshield_verifications_total",
			Help: "Cross-model verifications by status",
		},
		[]string{"status"},
	)

	StoreFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptshield_store_failures_total",
			Help: "Records that could not be persisted",
		},
	)

	PendingDecisions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "promptshield_pending_decisions",
			Help: "Warnings awaiting user confirmation",
		},
	)
)
