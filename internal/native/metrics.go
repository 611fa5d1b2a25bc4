package native

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// FillsTotal tracks successful native order fills.
	FillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_native_fills_total",
			Help: "Total number of native order fills by order kind",
		},
		[]string{"kind"},
	)

	// CancellationsTotal tracks order and pair cancellations.
	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_native_cancellations_total",
			Help: "Total number of native order cancellations by scope",
		},
		[]string{"scope"},
	)

	// BatchLegFailures tracks batch legs skipped after a failure.
	BatchLegFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_native_batch_leg_failures_total",
			Help: "Total number of batch fill legs skipped after a failure",
		},
		[]string{"kind"},
	)

	// ProtocolFeesPaid tracks native currency paid as protocol fees.
	ProtocolFeesPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_native_protocol_fees_paid_total",
		Help: "Total native currency paid as protocol fees",
	})
)
