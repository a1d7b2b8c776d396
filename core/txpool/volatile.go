package txpool

import (
	"sort"
	"sync"
	"time"

	"github.com/aitbc-network/chain-node/log"
	"github.com/aitbc-network/chain-node/metrics"
)

var volatileLog = log.New("txpool.volatile")

var (
	metricSize      = metrics.NewRegisteredGauge("mempool_size", "current mempool entry count")
	metricAdded     = metrics.NewRegisteredCounter("mempool_tx_added_total", "transactions admitted")
	metricDrained   = metrics.NewRegisteredCounter("mempool_tx_drained_total", "transactions drained for block inclusion")
	metricEvictions = metrics.NewRegisteredCounter("mempool_evictions_total", "lowest-fee entries evicted to make room")
)

// VolatilePool is the process-local mempool backend: a mutex-guarded map,
// fastest but lost on restart. Styled after the teacher's
// VectorFeePoolDummy (core/txpool/tx_vectorfee_pool.go): a single
// sync.Mutex-guarded struct with exported methods documented individually.
type VolatilePool struct {
	mu      sync.Mutex
	entries map[string]*PendingTransaction
	maxSize int
	minFee  uint64
}

// NewVolatilePool constructs an empty in-memory pool bounded at maxSize
// entries, rejecting any transaction whose fee is below minFee.
func NewVolatilePool(maxSize int, minFee uint64) *VolatilePool {
	return &VolatilePool{
		entries: make(map[string]*PendingTransaction),
		maxSize: maxSize,
		minFee:  minFee,
	}
}

// Add implements Pool.Add.
func (p *VolatilePool) Add(tx map[string]interface{}) (string, error) {
	fee := feeOf(tx)
	if fee < p.minFee {
		return "", ErrFeeBelowMin
	}
	txHash, err := computeTxHash(tx)
	if err != nil {
		return "", err
	}
	size, err := estimateSize(tx)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[txHash]; exists {
		return txHash, nil // idempotent (invariant M4)
	}
	if len(p.entries) >= p.maxSize {
		p.evictLowestFeeLocked()
	}
	p.entries[txHash] = &PendingTransaction{
		TxHash:     txHash,
		Content:    tx,
		ReceivedAt: time.Now(),
		Fee:        fee,
		SizeBytes:  size,
	}
	metricSize.Set(float64(len(p.entries)))
	metricAdded.Inc()
	volatileLog.Trace("admitted transaction", "tx_hash", txHash, "fee", fee, "size_bytes", size)
	return txHash, nil
}

// evictLowestFeeLocked removes the lowest-fee entry, breaking ties by
// latest received_at (newest of the lowest-fee entries), per spec.md §4.2.
// Caller must hold p.mu.
func (p *VolatilePool) evictLowestFeeLocked() {
	if len(p.entries) == 0 {
		return
	}
	var victim *PendingTransaction
	for _, e := range p.entries {
		if victim == nil ||
			e.Fee < victim.Fee ||
			(e.Fee == victim.Fee && e.ReceivedAt.After(victim.ReceivedAt)) {
			victim = e
		}
	}
	delete(p.entries, victim.TxHash)
	metricEvictions.Inc()
	volatileLog.Debug("evicted lowest-fee entry", "tx_hash", victim.TxHash, "fee", victim.Fee)
}

// List implements Pool.List. Ordering is unspecified, per spec.md §4.2.
func (p *VolatilePool) List() []*PendingTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*PendingTransaction, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	return out
}

// Drain implements Pool.Drain.
func (p *VolatilePool) Drain(maxCount int, maxBytes int) []*PendingTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	sorted := make([]*PendingTransaction, 0, len(p.entries))
	for _, e := range p.entries {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Fee != sorted[j].Fee {
			return sorted[i].Fee > sorted[j].Fee
		}
		return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt)
	})

	result := make([]*PendingTransaction, 0, maxCount)
	totalBytes := 0
	for _, candidate := range sorted {
		if len(result) >= maxCount {
			break
		}
		if totalBytes+candidate.SizeBytes > maxBytes {
			continue // skip, don't stop: a smaller tx behind it may still fit
		}
		result = append(result, candidate)
		totalBytes += candidate.SizeBytes
	}

	for _, e := range result {
		delete(p.entries, e.TxHash)
	}
	metricSize.Set(float64(len(p.entries)))
	metricDrained.Add(float64(len(result)))
	return result
}

// Remove implements Pool.Remove.
func (p *VolatilePool) Remove(txHash string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[txHash]; !ok {
		return false
	}
	delete(p.entries, txHash)
	metricSize.Set(float64(len(p.entries)))
	return true
}

// Size implements Pool.Size.
func (p *VolatilePool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
