// Package metrics exposes Prometheus instrumentation for the match pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchRequests counts resolved match requests by terminal status code.
	MatchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "penmatch",
		Name:      "match_requests_total",
		Help:      "Match requests resolved, by status code.",
	}, []string{"status"})

	// MatchDuration observes end-to-end match resolution time.
	MatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "penmatch",
		Name:      "match_duration_seconds",
		Help:      "End-to-end match resolution latency.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// CandidatesRetrieved observes blocking result-set sizes.
	CandidatesRetrieved = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "penmatch",
		Name:      "candidates_retrieved",
		Help:      "Candidates retrieved by the blocking stage per request.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
	})

	// ScreeningRejects counts records the screening layer refused.
	ScreeningRejects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "penmatch",
		Name:      "screening_rejects_total",
		Help:      "Records rejected by the screening rules.",
	})
)

// ObserveMatch records one resolved match outcome.
func ObserveMatch(status string, seconds float64, retrieved int) {
	MatchRequests.WithLabelValues(status).Inc()
	MatchDuration.Observe(seconds)
	CandidatesRetrieved.Observe(float64(retrieved))
}
