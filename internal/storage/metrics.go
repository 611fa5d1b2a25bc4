package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SinkEventsTotal tracks events delivered to each sink by outcome.
	SinkEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_sink_events_total",
			Help: "Total number of settlement events delivered to sinks",
		},
		[]string{"sink", "outcome"},
	)
)
