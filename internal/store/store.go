package store

import (
	"context"
	"encoding/hex"
	"errors"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("key not found")

// ErrConflict is returned by Update when a concurrent writer changed a key
// the transaction read or held the database locked past its timeout. The
// transaction had no effect and may be retried.
var ErrConflict = errors.New("transaction conflict")

// Key is a namespaced store key. Namespaces keep operation records from ever
// colliding with configuration slots.
type Key string

const (
	namespaceConfig    = "cfg/"
	namespaceOperation = "op/"
)

// ConfigKey returns the key of a named configuration slot.
func ConfigKey(name string) Key {
	return Key(namespaceConfig + name)
}

// OperationKey returns the key of the record for an opaque operation id.
func OperationKey(id []byte) Key {
	return Key(namespaceOperation + hex.EncodeToString(id))
}

// KV is the key-value view handed to a transaction function. Reads observe
// the transaction's own earlier writes.
type KV interface {
	Has(ctx context.Context, key Key) (bool, error)
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
}

// Store defines durable key-value persistence with atomic units of work.
type Store interface {
	// View runs fn against a read-only snapshot. Writes fail.
	View(ctx context.Context, fn func(KV) error) error

	// Update runs fn and commits its writes together if fn returns nil.
	// If fn returns an error nothing is persisted and that error is returned.
	Update(ctx context.Context, fn func(KV) error) error

	Close() error
}

// ErrReadOnly is returned by writes attempted inside View.
var ErrReadOnly = errors.New("write in read-only transaction")
