package fillquote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// QuotesTotal tracks completed fill quotes by side.
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_fill_quotes_total",
			Help: "Total number of completed fill quotes",
		},
		[]string{"side"},
	)

	// LegsTotal tracks quote legs by order type and outcome.
	LegsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_fill_quote_legs_total",
			Help: "Total number of fill quote legs by order type and outcome",
		},
		[]string{"type", "outcome"},
	)
)
