// Package metrics provides Prometheus collectors for the matching engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace is used when New is given an empty namespace
const DefaultNamespace = "resume_matcher"

// Ensure outcomes
const (
	OutcomeHit      = "hit"
	OutcomeComputed = "computed"
	OutcomeError    = "error"
)

// Cache lookup results
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics holds the engine's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	EnsureTotal      *prometheus.CounterVec
	ScorerDuration   *prometheus.HistogramVec
	ScorerErrors     *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	Invalidations    prometheus.Counter
	RefreshFailures  prometheus.Counter
	EventsPublished  *prometheus.CounterVec
	RankedCandidates prometheus.Histogram
}

// New registers the collectors with reg
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		EnsureTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "match",
				Name:      "ensure_total",
				Help:      "Total number of ensure calls by outcome",
			},
			[]string{"outcome", "forced"},
		),
		ScorerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scorer",
				Name:      "request_duration_seconds",
				Help:      "Duration of scorer calls in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"scorer", "status"},
		),
		ScorerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scorer",
				Name:      "errors_total",
				Help:      "Total number of failed scorer calls by kind",
			},
			[]string{"kind"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Total number of hot cache lookups by result",
			},
			[]string{"result"},
		),
		Invalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "match",
				Name:      "invalidations_total",
				Help:      "Total number of match records cleared",
			},
		),
		RefreshFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ranking",
				Name:      "refresh_failures_total",
				Help:      "Total number of resumes that failed to score during a ranking refresh",
			},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total number of lifecycle events published by type and status",
			},
			[]string{"type", "status"},
		),
		RankedCandidates: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ranking",
				Name:      "candidates",
				Help:      "Number of candidates returned per ranking call",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
}

// ObserveEnsure counts one ensure call
func (m *Metrics) ObserveEnsure(outcome string, forced bool) {
	if m == nil {
		return
	}
	f := "false"
	if forced {
		f = "true"
	}
	m.EnsureTotal.WithLabelValues(outcome, f).Inc()
}

// ObserveScorer records a scorer call's duration; status is "ok" or an error kind
func (m *Metrics) ObserveScorer(scorer, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScorerDuration.WithLabelValues(scorer, status).Observe(d.Seconds())
	if status != "ok" {
		m.ScorerErrors.WithLabelValues(status).Inc()
	}
}

// ObserveCache counts one hot cache lookup
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveInvalidation counts one cleared record
func (m *Metrics) ObserveInvalidation() {
	if m == nil {
		return
	}
	m.Invalidations.Inc()
}

// ObserveRefreshFailures adds n failed refresh items
func (m *Metrics) ObserveRefreshFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RefreshFailures.Add(float64(n))
}

// ObserveEvent counts one published (or failed) event
func (m *Metrics) ObserveEvent(eventType string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, status).Inc()
}

// ObserveRanking records how many candidates a ranking call returned
func (m *Metrics) ObserveRanking(n int) {
	if m == nil {
		return
	}
	m.RankedCandidates.Observe(float64(n))
}
