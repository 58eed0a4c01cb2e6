package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CandidatesRegisteredTotal tracks new candidates created from events.
	CandidatesRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sniper_scanner_candidates_registered_total",
		Help: "Total number of candidates registered from creation events",
	})

	// CandidatesResolvedTotal tracks candidates by final resolution.
	CandidatesResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sniper_scanner_candidates_resolved_total",
			Help: "Candidates resolved, by outcome",
		},
		[]string{"outcome"},
	)

	// CandidatesEvictedTotal tracks timeout evictions.
	CandidatesEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sniper_scanner_candidates_evicted_total",
		Help: "Total number of candidates evicted without resolving a handle",
	})

	// ScanDurationSeconds tracks the length of each scan pass.
	ScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sniper_scanner_scan_duration_seconds",
		Help:    "Duration of a full candidate scan pass",
		Buckets: prometheus.DefBuckets,
	})
)
