package moderator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var classifierCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_classifier_calls_total",
	Help: "Classifier backend calls by kind, backend and outcome.",
}, []string{"kind", "backend", "outcome"})

var classifierDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "moderation_classifier_duration_seconds",
	Help:    "Latency of classifier backend calls.",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
}, []string{"kind", "backend"})

var imageCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_image_cache_total",
	Help: "Image verdict cache results: hit, miss, error, inserted, conflict.",
}, []string{"result"})

var textShortCircuits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderation_text_short_circuit_total",
	Help: "Text verdicts produced without a backend call, by source.",
}, []string{"source"})

var breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "moderation_breaker_state",
	Help: "Circuit breaker state per backend (0 closed, 1 half-open, 2 open).",
}, []string{"backend"})
