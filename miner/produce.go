package miner

import (
	"time"

	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/core/txpool"
	"github.com/aitbc-network/chain-node/core/types"
)

// proposeBlock runs one production step: re-read the head, drain the
// mempool, compute the block hash, commit block + transactions in one
// session, then publish — spec.md §4.3 "Production step".
func (m *Miner) proposeBlock() error {
	start := time.Now()

	head, err := m.store.GetHead()
	if err != nil {
		return err
	}

	var nextHeight uint64
	parentHash := types.GenesisParentHash
	var intervalSeconds float64 = -1
	if head != nil {
		nextHeight = head.Height + 1
		parentHash = head.Hash
		intervalSeconds = time.Since(head.Timestamp).Seconds()
	}

	pending := m.pool.Drain(m.cfg.MaxTxsPerBlock, m.cfg.MaxBlockSizeBytes)

	timestamp := time.Now().UTC()
	blockHash := types.ComputeBlockHash(m.cfg.ChainID, nextHeight, parentHash, timestamp)

	block := &types.Block{
		Height:     nextHeight,
		Hash:       blockHash,
		ParentHash: parentHash,
		Proposer:   m.cfg.ProposerID,
		Timestamp:  timestamp,
		TxCount:    len(pending),
	}

	txs := make([]*types.Transaction, 0, len(pending))
	var totalFees uint64
	for _, ptx := range pending {
		txs = append(txs, toTransaction(ptx, nextHeight, timestamp))
		totalFees += ptx.Fee
	}

	if err := rawdb.WithSession(m.store, func(sess *rawdb.Session) error {
		return m.store.AppendBlock(sess, block, txs, nil)
	}); err != nil {
		return err
	}

	buildDuration := time.Since(start)
	metricBlocksProposed.Inc()
	metricChainHeadHeight.Set(float64(nextHeight))
	metricLastBlockTxCount.Set(float64(len(pending)))
	metricLastBlockTotalFees.Set(float64(totalFees))
	metricBlockBuildDuration.Observe(buildDuration.Seconds())
	if intervalSeconds >= 0 {
		metricBlockInterval.Observe(intervalSeconds)
	}

	perProposerCounter(m.cfg.ProposerID).Inc()
	m.mu.Lock()
	if m.lastProposerID != "" && m.lastProposerID != m.cfg.ProposerID {
		metricProposerRotations.Inc()
	}
	m.lastProposerID = m.cfg.ProposerID
	m.mu.Unlock()

	m.publisher.publish(block.Announcement())

	minerLog.Info("proposed block",
		"height", nextHeight, "hash", blockHash, "parent_hash", parentHash,
		"tx_count", len(pending), "total_fees", totalFees,
		"build_ms", float64(buildDuration.Microseconds())/1000.0)
	return nil
}

func toTransaction(ptx *txpool.PendingTransaction, height uint64, createdAt time.Time) *types.Transaction {
	sender, _ := ptx.Content["sender"].(string)
	recipient, _ := ptx.Content["recipient"].(string)
	if recipient == "" {
		if payload, ok := ptx.Content["payload"].(map[string]interface{}); ok {
			recipient, _ = payload["recipient"].(string)
		}
	}
	h := height
	return &types.Transaction{
		TxHash:      ptx.TxHash,
		BlockHeight: &h,
		Sender:      sender,
		Recipient:   recipient,
		Payload:     ptx.Content,
		CreatedAt:   createdAt,
	}
}
