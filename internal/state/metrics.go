package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_state_commits_total",
		Help: "Total number of state commits by result (ok, conflict, error)",
	}, []string{"result"})

	WritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_state_writes_total",
		Help: "Total number of keys modified by successful commits",
	})

	CommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_state_commit_duration_seconds",
		Help:    "Time spent applying a commit to the store",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
)
