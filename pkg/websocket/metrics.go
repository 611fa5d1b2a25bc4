package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks connected event stream clients.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_ws_active_connections",
		Help: "Number of connected event stream clients",
	})

	// MessagesSentTotal tracks events written to clients.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_ws_messages_sent_total",
			Help: "Total number of events written to event stream clients",
		},
		[]string{"event_type"},
	)

	// MessagesDroppedTotal tracks events dropped because a client fell behind.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_ws_messages_dropped_total",
			Help: "Total number of events dropped for slow clients",
		},
		[]string{"reason"},
	)

	// ConnectionDuration tracks client connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_ws_connection_duration_seconds",
		Help:    "Duration of event stream connections before disconnect",
		Buckets: []float64{1, 10, 60, 300, 600, 1800, 3600, 14400, 86400},
	})
)
