package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// TradesTotal tracks swaps routed through liquidity sources.
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_bridge_trades_total",
			Help: "Total number of bridge swaps by source and outcome",
		},
		[]string{"source", "outcome"},
	)
)
