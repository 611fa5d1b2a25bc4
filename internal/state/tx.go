package state

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"
)

// Tx is a unit of work over a Store. Reads are served from an overlay of
// pending writes, falling back to the store; the first value observed for a
// key is remembered and checked again at commit time.
type Tx struct {
	ctx   context.Context
	store Store

	mu      sync.Mutex
	base    map[string]*big.Int
	dirty   map[string]*big.Int
	journal []change
	done    bool
}

type change struct {
	key     string
	prev    *big.Int
	existed bool
}

// Begin opens a unit of work.
func Begin(ctx context.Context, store Store) *Tx {
	return &Tx{
		ctx:   ctx,
		store: store,
		base:  make(map[string]*big.Int),
		dirty: make(map[string]*big.Int),
	}
}

// Context returns the context the unit of work was opened with.
func (t *Tx) Context() context.Context {
	return t.ctx
}

// Get returns the current value of key. The result may be modified by the caller.
func (t *Tx) Get(key string) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.load(key)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(v), nil
}

// Set replaces the value of key. Negative values are rejected.
func (t *Tx) Set(key string, v *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.set(key, valueOf(v))
}

// Add adds delta to key and returns the new value. The result may not go negative.
func (t *Tx) Add(key string, delta *big.Int) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, err := t.load(key)
	if err != nil {
		return nil, err
	}

	next := new(big.Int).Add(cur, delta)
	if err := t.set(key, next); err != nil {
		return nil, err
	}
	return new(big.Int).Set(next), nil
}

// Snapshot returns a marker that RevertTo can roll back to.
func (t *Tx) Snapshot() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.journal)
}

// RevertTo discards every write made after the snapshot was taken.
// Values read since then stay in the read set.
func (t *Tx) RevertTo(snapshot int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.journal) - 1; i >= snapshot; i-- {
		c := t.journal[i]
		if c.existed {
			t.dirty[c.key] = c.prev
		} else {
			delete(t.dirty, c.key)
		}
	}
	t.journal = t.journal[:snapshot]
}

// Writes returns the compare-and-swap set of the unit of work, sorted by key.
func (t *Tx) Writes() []Write {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.base))
	for k := range t.base {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writes := make([]Write, 0, len(keys))
	for _, k := range keys {
		prev := t.base[k]
		next := prev
		if v, ok := t.dirty[k]; ok {
			next = v
		}
		writes = append(writes, Write{
			Key:  k,
			Prev: new(big.Int).Set(prev),
			Next: new(big.Int).Set(next),
		})
	}
	return writes
}

// Commit applies the unit of work to the store. A Tx can be committed once.
func (t *Tx) Commit() error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return errors.New("state: transaction already committed")
	}
	t.done = true
	t.mu.Unlock()

	writes := t.Writes()
	changed := 0
	for _, w := range writes {
		if w.Changed() {
			changed++
		}
	}

	start := time.Now()
	err := t.store.Commit(t.ctx, writes)
	CommitDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		CommitsTotal.WithLabelValues("ok").Inc()
		WritesTotal.Add(float64(changed))
		return nil
	case errors.Is(err, ErrConflict):
		CommitsTotal.WithLabelValues("conflict").Inc()
		return err
	default:
		CommitsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("commit state: %w", err)
	}
}

func (t *Tx) load(key string) (*big.Int, error) {
	if v, ok := t.dirty[key]; ok {
		return v, nil
	}
	if v, ok := t.base[key]; ok {
		return v, nil
	}

	v, err := t.store.Get(t.ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	v = valueOf(v)
	t.base[key] = v
	return v, nil
}

func (t *Tx) set(key string, v *big.Int) error {
	if v.Sign() < 0 {
		return fmt.Errorf("state: negative value for %s", key)
	}
	if t.done {
		return errors.New("state: write after commit")
	}
	if _, err := t.load(key); err != nil {
		return err
	}

	prev, existed := t.dirty[key]
	t.journal = append(t.journal, change{key: key, prev: prev, existed: existed})
	t.dirty[key] = new(big.Int).Set(v)
	return nil
}
