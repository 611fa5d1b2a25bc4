// Package state holds the exchange's world state as a flat map of integer
// values and commits changes to it atomically with compare-and-swap.
package state

import (
	"context"
	"errors"
	"math/big"
)

// ErrConflict is returned by Commit when a value read by the unit of work
// changed before the commit was applied.
var ErrConflict = errors.New("state: concurrent modification")

// Store is a key-value store of non-negative integers. Absent keys read as zero.
type Store interface {
	// Get returns the committed value of key.
	Get(ctx context.Context, key string) (*big.Int, error)

	// Commit applies every write atomically if every Prev still matches the
	// committed value, and returns ErrConflict otherwise.
	Commit(ctx context.Context, writes []Write) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Write is one compare-and-swap entry. A write whose Next equals Prev only
// asserts that the key was not modified.
type Write struct {
	Key  string
	Prev *big.Int
	Next *big.Int
}

// Changed reports whether the write modifies its key.
func (w Write) Changed() bool {
	return valueOf(w.Prev).Cmp(valueOf(w.Next)) != 0
}

func valueOf(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func parseValue(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("state: malformed value " + s)
	}
	return v, nil
}
