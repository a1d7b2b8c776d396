package chainsync

import (
	"time"

	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/core/types"
	"github.com/aitbc-network/chain-node/log"
	"github.com/aitbc-network/chain-node/metrics"
)

var resolverLog = log.New("chainsync.resolver")

var (
	metricBlocksReceived  = metrics.NewRegisteredCounter("sync_blocks_received_total", "blocks offered for import")
	metricBlocksRejected  = metrics.NewRegisteredCounter("sync_blocks_rejected_total", "blocks rejected by the signature gate")
	metricBlocksDuplicate = metrics.NewRegisteredCounter("sync_blocks_duplicate_total", "blocks already present by hash")
	metricBlocksAccepted  = metrics.NewRegisteredCounter("sync_blocks_accepted_total", "blocks appended to the chain")
	metricBlocksStale     = metrics.NewRegisteredCounter("sync_blocks_stale_total", "blocks at or below our head, not a fork")
	metricBlocksGap       = metrics.NewRegisteredCounter("sync_blocks_gap_total", "blocks received with a height gap")
	metricForksDetected   = metrics.NewRegisteredCounter("sync_forks_detected_total", "competing blocks at an existing height")
	metricReorgsTotal     = metrics.NewRegisteredCounter("sync_reorgs_total", "reorgs performed")
	metricReorgRejected   = metrics.NewRegisteredCounter("sync_reorg_rejected_total", "reorgs rejected for exceeding max_reorg_depth")
	metricChainHeight     = metrics.NewRegisteredGauge("sync_chain_height", "height of our chain after the last import")
	metricReorgDepth      = metrics.NewRegisteredSummary("sync_reorg_depth", "depth of performed reorgs")
	metricImportDuration  = metrics.NewRegisteredSummary("sync_import_duration_seconds", "wall time spent per Import call")
)

// ImportResult is the named result of Import — a direct Go rendering of
// sync.py's ImportResult dataclass (§9 pattern translation: named result
// variants instead of exceptions).
type ImportResult struct {
	Accepted   bool
	Height     uint64
	BlockHash  string
	Reason     string
	Reorged    bool
	ReorgDepth int
}

// Status is the snapshot returned by Resolver.Status, carried over from
// sync.py's ChainSync.get_sync_status and served by GET /rpc/admin/status.
type Status struct {
	ChainID                string
	HeadHeight             int64
	HeadHash               string
	HeadProposer           string
	HeadTimestamp          time.Time
	TotalBlocks            int
	ValidateSignatures     bool
	TrustedProposers       []string
	MaxReorgDepth          int
}

// Resolver is spec.md §4.4's Chain Sync & Fork Resolver: it classifies
// every imported block as a duplicate, a direct append, a stale/ignorable
// block, a gap, or a fork — and, for a fork strictly longer than our chain
// and within max_reorg_depth, performs a delete-then-append reorg in one
// core/rawdb.Session.
type Resolver struct {
	store              *rawdb.ChainStore
	validator          *ProposerSignatureValidator
	chainID            string
	maxReorgDepth      int
	validateSignatures bool
}

// NewResolver constructs a Resolver over store.
func NewResolver(store *rawdb.ChainStore, validator *ProposerSignatureValidator, chainID string, maxReorgDepth int, validateSignatures bool) *Resolver {
	return &Resolver{
		store:              store,
		validator:          validator,
		chainID:            chainID,
		maxReorgDepth:      maxReorgDepth,
		validateSignatures: validateSignatures,
	}
}

// Import offers a remotely-produced block (and its transactions) for
// inclusion in our chain, returning the classification outcome. Storage
// failures are returned as a non-nil error; every other outcome — including
// rejection — is expressed through the returned ImportResult.
func (r *Resolver) Import(block *types.Block, txs []*types.Transaction) (*ImportResult, error) {
	start := time.Now()
	metricBlocksReceived.Inc()

	if r.validateSignatures {
		ok, reason := r.validator.Validate(BlockHeader{
			Height: block.Height, Hash: block.Hash, ParentHash: block.ParentHash,
			Timestamp: block.Timestamp.Format(time.RFC3339Nano), Proposer: block.Proposer,
		})
		if !ok {
			metricBlocksRejected.Inc()
			resolverLog.Warn("block rejected: signature validation failed", "height", block.Height, "reason", reason)
			return &ImportResult{Height: block.Height, BlockHash: block.Hash, Reason: reason}, nil
		}
	}

	existing, err := r.store.GetBlockByHash(block.Hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metricBlocksDuplicate.Inc()
		return &ImportResult{Height: block.Height, BlockHash: block.Hash, Reason: "block already exists"}, nil
	}

	head, err := r.store.GetHead()
	if err != nil {
		return nil, err
	}
	ourHeight := int64(-1)
	if head != nil {
		ourHeight = int64(head.Height)
	}

	// Case 1: block extends our chain directly.
	if int64(block.Height) == ourHeight+1 {
		parentExists := block.Height == 0 && block.ParentHash == types.GenesisParentHash
		if !parentExists && head != nil {
			parentExists = block.ParentHash == head.Hash
		}
		if parentExists {
			result, err := r.appendBlock(block, txs)
			if err != nil {
				return nil, err
			}
			metricImportDuration.Observe(time.Since(start).Seconds())
			return result, nil
		}
	}

	// Case 2: block is at or behind our head.
	if int64(block.Height) <= ourHeight {
		existingAtHeight, err := r.store.GetBlockByHeight(block.Height)
		if err != nil {
			return nil, err
		}
		if existingAtHeight != nil && existingAtHeight.Hash != block.Hash {
			return r.resolveFork(block, txs, uint64(ourHeight))
		}
		metricBlocksStale.Inc()
		return &ImportResult{Height: block.Height, BlockHash: block.Hash, Reason: "stale block"}, nil
	}

	// Case 3: block is ahead of our head by more than one — we're behind.
	if int64(block.Height) > ourHeight+1 {
		metricBlocksGap.Inc()
		return &ImportResult{Height: block.Height, BlockHash: block.Hash, Reason: "gap detected"}, nil
	}

	return &ImportResult{Height: block.Height, BlockHash: block.Hash, Reason: "unhandled import case"}, nil
}

func (r *Resolver) appendBlock(block *types.Block, txs []*types.Transaction) (*ImportResult, error) {
	if block.Timestamp.IsZero() {
		block.Timestamp = time.Now().UTC()
	}
	if txs != nil {
		block.TxCount = len(txs)
	}

	err := rawdb.WithSession(r.store, func(sess *rawdb.Session) error {
		return r.store.AppendBlock(sess, block, txs, nil)
	})
	if err != nil {
		return nil, err
	}

	metricBlocksAccepted.Inc()
	metricChainHeight.Set(float64(block.Height))
	resolverLog.Info("imported block", "height", block.Height, "hash", block.Hash, "proposer", block.Proposer, "tx_count", block.TxCount)
	return &ImportResult{Accepted: true, Height: block.Height, BlockHash: block.Hash, Reason: "appended to chain"}, nil
}

// resolveFork implements the conservative longest-chain rule preserved from
// spec.md §9: reject unless the incoming block's height is strictly greater
// than our head. A genuinely competing chain of equal or lesser height is
// never adopted, since only one block at a time is offered here.
func (r *Resolver) resolveFork(block *types.Block, txs []*types.Transaction, ourHeight uint64) (*ImportResult, error) {
	metricForksDetected.Inc()
	resolverLog.Warn("fork detected", "fork_height", block.Height, "our_height", ourHeight, "fork_hash", block.Hash)

	if block.Height <= ourHeight {
		return &ImportResult{Height: block.Height, BlockHash: block.Hash,
			Reason: "fork rejected: our chain is longer or equal"}, nil
	}

	reorgDepth := int(ourHeight - block.Height + 1)
	if reorgDepth > r.maxReorgDepth {
		metricReorgRejected.Inc()
		return &ImportResult{Height: block.Height, BlockHash: block.Hash,
			Reason: "reorg depth exceeds max"}, nil
	}

	if block.Timestamp.IsZero() {
		block.Timestamp = time.Now().UTC()
	}
	if txs != nil {
		block.TxCount = len(txs)
	}

	removed := 0
	err := rawdb.WithSession(r.store, func(sess *rawdb.Session) error {
		if err := r.store.DeleteBlocksFrom(sess, block.Height); err != nil {
			return err
		}
		removed = reorgDepth
		return r.store.AppendBlock(sess, block, txs, nil)
	})
	if err != nil {
		return nil, err
	}

	metricReorgsTotal.Inc()
	metricReorgDepth.Observe(float64(removed))
	metricBlocksAccepted.Inc()
	metricChainHeight.Set(float64(block.Height))
	resolverLog.Warn("chain reorg performed", "removed_blocks", removed, "new_height", block.Height)

	return &ImportResult{
		Accepted: true, Height: block.Height, BlockHash: block.Hash,
		Reason: "appended to chain", Reorged: true, ReorgDepth: removed,
	}, nil
}

// Status reports the current sync/head status, carried over from sync.py's
// get_sync_status.
func (r *Resolver) Status() (*Status, error) {
	head, err := r.store.GetHead()
	if err != nil {
		return nil, err
	}
	s := &Status{
		ChainID:            r.chainID,
		HeadHeight:         -1,
		ValidateSignatures: r.validateSignatures,
		TrustedProposers:   r.validator.TrustedProposers(),
		MaxReorgDepth:      r.maxReorgDepth,
		TotalBlocks:        r.store.CountBlocks(),
	}
	if head != nil {
		s.HeadHeight = int64(head.Height)
		s.HeadHash = head.Hash
		s.HeadProposer = head.Proposer
		s.HeadTimestamp = head.Timestamp
	}
	return s, nil
}
