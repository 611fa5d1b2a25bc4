package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	SignerCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_signer_cache_hits_total",
		Help: "Total number of recovered-signer cache hits",
	})

	SignerCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_signer_cache_misses_total",
		Help: "Total number of recovered-signer cache misses",
	})

	SignerCacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_signer_cache_sets_total",
		Help: "Total number of recovered-signer cache writes",
	})
)
