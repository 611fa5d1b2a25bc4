package settle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// OperationsTotal tracks settlement operations by result.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_operations_total",
			Help: "Total number of settlement operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// RetriesTotal tracks re-executions caused by commit conflicts.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_retries_total",
			Help: "Total number of operations re-executed after a commit conflict",
		},
		[]string{"operation"},
	)

	// OperationDuration tracks end-to-end operation latency.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_operation_duration_seconds",
		Help:    "Duration of settlement operations including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// EventsPublished tracks events handed to the sink.
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_events_published_total",
		Help: "Total number of committed events handed to the event sink",
	})
)
