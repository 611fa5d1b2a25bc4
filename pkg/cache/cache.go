// Package cache memoises ECDSA signer recovery.
package cache

import "github.com/ethereum/go-ethereum/common"

// SignerCache stores the signer recovered from a (hash, signature) pair.
// Entries never go stale: recovery is a pure function of its key.
type SignerCache interface {
	// Get returns the cached signer for key.
	Get(key string) (common.Address, bool)

	// Set stores the signer for key. It may be dropped under memory pressure.
	Set(key string, signer common.Address) bool

	// Clear removes all entries.
	Clear()

	// Close releases resources.
	Close()
}
