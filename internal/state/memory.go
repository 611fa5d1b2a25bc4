package state

import (
	"context"
	"math/big"
	"sync"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]*big.Int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]*big.Int)}
}

// Get returns the committed value of key.
func (m *MemoryStore) Get(_ context.Context, key string) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return new(big.Int).Set(valueOf(m.values[key])), nil
}

// Commit applies writes atomically.
func (m *MemoryStore) Commit(_ context.Context, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range writes {
		if valueOf(m.values[w.Key]).Cmp(valueOf(w.Prev)) != 0 {
			return ErrConflict
		}
	}

	for _, w := range writes {
		if !w.Changed() {
			continue
		}
		next := valueOf(w.Next)
		if next.Sign() == 0 {
			delete(m.values, w.Key)
			continue
		}
		m.values[w.Key] = new(big.Int).Set(next)
	}
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Len returns the number of non-zero keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.values)
}
