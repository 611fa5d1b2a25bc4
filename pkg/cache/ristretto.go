package cache

import (
	"fmt"

	"github.com/dgraph-io/ristretto"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// RistrettoCache is a SignerCache backed by Ristretto.
type RistrettoCache struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds configuration for Ristretto cache.
type RistrettoConfig struct {
	MaxEntries  int64 // Maximum number of recovered signers kept
	BufferItems int64 // Number of keys per Get buffer
	Logger      *zap.Logger
}

// NewRistrettoCache creates a new Ristretto-backed signer cache.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("max entries must be positive, got %d", cfg.MaxEntries)
	}

	bufferItems := cfg.BufferItems
	if bufferItems == 0 {
		bufferItems = 64
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: bufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RistrettoCache{
		cache:  cache,
		logger: logger,
	}, nil
}

// Get returns the cached signer for key.
func (r *RistrettoCache) Get(key string) (common.Address, bool) {
	value, found := r.cache.Get(key)
	if !found {
		SignerCacheMissesTotal.Inc()
		return common.Address{}, false
	}

	signer, ok := value.(common.Address)
	if !ok {
		SignerCacheMissesTotal.Inc()
		return common.Address{}, false
	}

	SignerCacheHitsTotal.Inc()
	return signer, true
}

// Set stores the signer for key with cost 1.
func (r *RistrettoCache) Set(key string, signer common.Address) bool {
	success := r.cache.Set(key, signer, 1)
	if success {
		SignerCacheSetsTotal.Inc()
	} else {
		r.logger.Debug("signer-cache-set-dropped", zap.String("key", key))
	}
	return success
}

// Clear removes all entries.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("signer-cache-cleared")
}

// Close closes the cache and releases resources.
func (r *RistrettoCache) Close() {
	r.cache.Close()
}

// Metrics returns Ristretto's internal metrics.
func (r *RistrettoCache) Metrics() *ristretto.Metrics {
	return r.cache.Metrics
}

// Wait blocks until all pending writes have been applied.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}
