package multiplex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// RoutesTotal tracks completed top-level routes by shape.
	RoutesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_multiplex_routes_total",
			Help: "Total number of completed multiplex routes",
		},
		[]string{"shape"},
	)

	// LegsTotal tracks route legs and hops by kind and outcome.
	LegsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_multiplex_legs_total",
			Help: "Total number of multiplex legs and hops by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)
