// Package metrics holds the Prometheus collectors of the harvester. They are
// registered on the default registry and served by the ops endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mse_sessions_in_use",
		Help: "Remote sessions currently checked out of the pool.",
	})

	WindowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mse_subwindows_total",
		Help: "Sub-window fetches by outcome.",
	}, []string{"outcome"})

	WindowDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mse_subwindow_duration_seconds",
		Help:    "Time spent fetching and persisting one sub-window.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mse_records_total",
		Help: "Historical records by outcome (persisted, dropped).",
	}, []string{"outcome"})

	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mse_entity_cycles_total",
		Help: "Entity update cycles by kind and whether the marker advanced.",
	}, []string{"kind", "advanced"})

	PurgedRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mse_purged_records_total",
		Help: "Records deleted by crash recovery.",
	})
)

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomePersisted = "persisted"
	OutcomeDropped   = "dropped"
)
