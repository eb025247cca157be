package biz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "moderation_sweep_duration_seconds",
	Help:    "Duration of moderation sweeps by outcome.",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
}, []string{"outcome"})

var sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_sweeps_total",
	Help: "Scheduler ticks by outcome: clean, redacted, failed, idle, busy.",
}, []string{"outcome"})

var nodesRedacted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_nodes_redacted_total",
	Help: "Nodes removed from documents, by what flagged them.",
}, []string{"source"})

var locatorAnomalies = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderation_locator_anomalies_total",
	Help: "Sweeps whose document text was flagged but no node was located.",
})
