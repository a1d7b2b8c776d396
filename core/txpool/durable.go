package txpool

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/log"
	"github.com/aitbc-network/chain-node/metrics"
)

var durableLog = log.New("txpool.durable")

var (
	metricDurableSize  = metrics.NewRegisteredGauge("mempool_durable_size", "current durable mempool entry count")
	metricDurableAdded = metrics.NewRegisteredCounter("mempool_durable_tx_added_total", "transactions admitted to the durable mempool")
	metricDurableEvict = metrics.NewRegisteredCounter("mempool_durable_evictions_total", "lowest-fee entries evicted from the durable mempool")
)

var entryPrefix = []byte("mp")

func entryKey(txHash string) []byte {
	return append(append([]byte{}, entryPrefix...), []byte(txHash)...)
}

// durableRecord is the on-disk representation of a PendingTransaction;
// plain JSON, distinct from the content's own canonical encoding used only
// to derive TxHash.
type durableRecord struct {
	TxHash     string                 `json:"tx_hash"`
	Content    map[string]interface{} `json:"content"`
	ReceivedAt int64                  `json:"received_at_unix_nano"`
	Fee        uint64                 `json:"fee"`
	SizeBytes  int                    `json:"size_bytes"`
}

// DurablePool is the Pebble-backed mempool backend: entries survive process
// restart (spec.md §4.2 "mempool_backend: durable"). An in-memory index
// mirrors the on-disk rows so List and Drain (which applies the
// fee-priority ordering; List is unordered) need no full store scan on
// every call, the same division of
// labor the teacher's core/txpool/tx_vectorfee_pool.go duplicates between
// its map and its price-sorted heap.
type DurablePool struct {
	mu      sync.Mutex
	db      rawdb.KeyValueStore
	index   map[string]*PendingTransaction
	maxSize int
	minFee  uint64
}

// NewDurablePool opens (or resumes) a durable mempool over db, bounded at
// maxSize entries, rejecting any transaction whose fee is below minFee.
func NewDurablePool(db rawdb.KeyValueStore, maxSize int, minFee uint64) (*DurablePool, error) {
	p := &DurablePool{
		db:      db,
		index:   make(map[string]*PendingTransaction),
		maxSize: maxSize,
		minFee:  minFee,
	}
	if err := p.loadFromDisk(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *DurablePool) loadFromDisk() error {
	it := p.db.NewIterator(entryPrefix)
	defer it.Release()
	for it.Next() {
		rec := new(durableRecord)
		if err := json.Unmarshal(it.Value(), rec); err != nil {
			durableLog.Crit("failed to decode durable mempool entry", "err", err)
			continue
		}
		p.index[rec.TxHash] = &PendingTransaction{
			TxHash:     rec.TxHash,
			Content:    rec.Content,
			ReceivedAt: time.Unix(0, rec.ReceivedAt),
			Fee:        rec.Fee,
			SizeBytes:  rec.SizeBytes,
		}
	}
	metricDurableSize.Set(float64(len(p.index)))
	durableLog.Info("resumed durable mempool", "entries", len(p.index))
	return nil
}

// Add implements Pool.Add.
func (p *DurablePool) Add(tx map[string]interface{}) (string, error) {
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

	if _, exists := p.index[txHash]; exists {
		return txHash, nil // idempotent (invariant M4)
	}
	if len(p.index) >= p.maxSize {
		p.evictLowestFeeLocked()
	}

	receivedAt := time.Now()
	entry := &PendingTransaction{TxHash: txHash, Content: tx, ReceivedAt: receivedAt, Fee: fee, SizeBytes: size}
	rec := &durableRecord{TxHash: txHash, Content: tx, ReceivedAt: receivedAt.UnixNano(), Fee: fee, SizeBytes: size}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := p.db.Put(entryKey(txHash), data); err != nil {
		return "", err
	}
	p.index[txHash] = entry
	metricDurableSize.Set(float64(len(p.index)))
	metricDurableAdded.Inc()
	durableLog.Trace("admitted transaction", "tx_hash", txHash, "fee", fee, "size_bytes", size)
	return txHash, nil
}

// evictLowestFeeLocked removes the lowest-fee entry. Caller must hold p.mu.
func (p *DurablePool) evictLowestFeeLocked() {
	if len(p.index) == 0 {
		return
	}
	var victim *PendingTransaction
	for _, e := range p.index {
		if victim == nil ||
			e.Fee < victim.Fee ||
			(e.Fee == victim.Fee && e.ReceivedAt.After(victim.ReceivedAt)) {
			victim = e
		}
	}
	delete(p.index, victim.TxHash)
	if err := p.db.Delete(entryKey(victim.TxHash)); err != nil {
		durableLog.Crit("failed to delete evicted entry", "tx_hash", victim.TxHash, "err", err)
	}
	metricDurableEvict.Inc()
	durableLog.Debug("evicted lowest-fee entry", "tx_hash", victim.TxHash, "fee", victim.Fee)
}

// List implements Pool.List.
func (p *DurablePool) List() []*PendingTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*PendingTransaction, 0, len(p.index))
	for _, e := range p.index {
		out = append(out, e)
	}
	return out
}

// Drain implements Pool.Drain.
func (p *DurablePool) Drain(maxCount int, maxBytes int) []*PendingTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	sorted := make([]*PendingTransaction, 0, len(p.index))
	for _, e := range p.index {
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
			continue
		}
		result = append(result, candidate)
		totalBytes += candidate.SizeBytes
	}

	for _, e := range result {
		delete(p.index, e.TxHash)
		if err := p.db.Delete(entryKey(e.TxHash)); err != nil {
			durableLog.Crit("failed to delete drained entry", "tx_hash", e.TxHash, "err", err)
		}
	}
	metricDurableSize.Set(float64(len(p.index)))
	return result
}

// Remove implements Pool.Remove.
func (p *DurablePool) Remove(txHash string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.index[txHash]; !ok {
		return false
	}
	delete(p.index, txHash)
	if err := p.db.Delete(entryKey(txHash)); err != nil {
		durableLog.Crit("failed to delete entry", "tx_hash", txHash, "err", err)
	}
	metricDurableSize.Set(float64(len(p.index)))
	return true
}

// Size implements Pool.Size.
func (p *DurablePool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.index)
}
