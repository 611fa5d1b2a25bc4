package nft

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// FillsTotal tracks NFT order fills by standard and direction.
	FillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_nft_fills_total",
			Help: "Total number of NFT order fills",
		},
		[]string{"kind", "direction"},
	)

	// CancellationsTotal tracks NFT nonce cancellations.
	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_nft_cancellations_total",
			Help: "Total number of NFT order cancellations",
		},
		[]string{"kind"},
	)

	// BatchLegFailures tracks batch buy and match legs that failed.
	BatchLegFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_nft_batch_leg_failures_total",
			Help: "Total number of failed NFT batch legs",
		},
		[]string{"kind"},
	)

	// MatchProfit tracks the spread kept by matchers.
	MatchProfit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_nft_match_profit_total",
		Help: "Total spread paid to NFT order matchers",
	})
)
