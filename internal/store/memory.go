package store

import (
	"context"
	"sync"
)

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is a process-local Store. Update holds an exclusive lock for the
// whole transaction, so transactions are totally ordered.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[Key][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Key][]byte)}
}

// View runs fn with a shared lock held.
func (s *MemoryStore) View(ctx context.Context, fn func(KV) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memoryTx{store: s, readOnly: true})
}

// Update runs fn against a write buffer and applies it only if fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, fn func(KV) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, writes: make(map[Key][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, v := range tx.writes {
		if v == nil {
			delete(s.data, k)
			continue
		}
		s.data[k] = v
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// memoryTx buffers writes; a nil value in writes marks a deletion.
type memoryTx struct {
	store    *MemoryStore
	writes   map[Key][]byte
	readOnly bool
}

func (t *memoryTx) lookup(key Key) ([]byte, bool) {
	if v, ok := t.writes[key]; ok {
		return v, v != nil
	}
	v, ok := t.store.data[key]
	return v, ok
}

func (t *memoryTx) Has(_ context.Context, key Key) (bool, error) {
	_, ok := t.lookup(key)
	return ok, nil
}

func (t *memoryTx) Get(_ context.Context, key Key) ([]byte, error) {
	v, ok := t.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *memoryTx) Set(_ context.Context, key Key, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	v := make([]byte, len(value))
	copy(v, value)
	t.writes[key] = v
	return nil
}

func (t *memoryTx) Delete(_ context.Context, key Key) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.writes[key] = nil
	return nil
}
