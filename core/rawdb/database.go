// Package rawdb implements the durable ordered key-value storage engine of
// spec.md §4.1, its secondary-index schema, and the scoped-session
// transaction abstraction every other component mutates state through.
package rawdb

import "io"

// KeyValueReader is the read half of the storage contract, mirroring the
// teacher's ethdb.KeyValueReader.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter is the write half, mirroring the teacher's
// ethdb.KeyValueWriter.
type KeyValueWriter interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Iterator walks a key range in ascending key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

// Batch accumulates writes for atomic commit; it is the building block for
// Session.
type Batch interface {
	KeyValueWriter
	Commit() error
	Reset()
}

// KeyValueStore is the full storage contract. NewMemoryDatabase and
// NewPebbleDatabase are its two implementations (spec.md §4.1: "volatile or
// storage-backed").
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	NewBatch() Batch
	NewIterator(prefix []byte) Iterator
	io.Closer
}

// ErrNotFound is the "key not found" error value. The Get implementations
// in this package do not return it: they signal a missing key with
// (nil, nil), which the typed accessor functions in accessors_chain.go
// translate into typed zero-values.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "rawdb: key not found" }
