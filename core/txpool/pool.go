// Package txpool implements the mempool of spec.md §4.2: fee-prioritized
// admission, eviction, and batched draining, behind one contract shared by
// a volatile (process-local) and a durable (Pebble-backed) implementation.
package txpool

import (
	"errors"
	"time"
)

// ErrFeeBelowMin is returned by Add when the transaction's declared fee is
// strictly below the configured minimum (spec.md §4.2, CONFLICT/VALIDATION
// taxonomy in spec.md §7).
var ErrFeeBelowMin = errors.New("txpool: fee below minimum")

// PendingTransaction is an immutable mempool entry (spec.md §3
// "PendingTransaction"). ReceivedAt is a monotonic-for-ordering timestamp,
// not a wall-clock guarantee.
type PendingTransaction struct {
	TxHash     string
	Content    map[string]interface{}
	ReceivedAt time.Time
	Fee        uint64
	SizeBytes  int
}

// Pool is the contract both the volatile and durable mempool backends
// satisfy. All operations are atomic with respect to each other (spec.md
// §4.2 "Concurrency").
type Pool interface {
	// Add admits tx, returning its canonical tx_hash. Idempotent: a
	// duplicate hash is a no-op that still returns the hash. May evict one
	// lowest-fee entry if the pool is at max_size (invariant M1).
	Add(tx map[string]interface{}) (string, error)

	// List returns an unordered snapshot of every pending entry.
	List() []*PendingTransaction

	// Drain greedily selects up to maxCount entries, fee DESC / received_at
	// ASC, skipping (not stopping on) any candidate that would exceed
	// maxBytes, and removes exactly the returned entries from the pool.
	Drain(maxCount int, maxBytes int) []*PendingTransaction

	// Remove deletes tx_hash if present; idempotent, never an error.
	Remove(txHash string) bool

	// Size returns the current entry count.
	Size() int
}
