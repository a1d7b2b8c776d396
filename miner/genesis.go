package miner

import (
	"time"

	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/core/types"
)

// ensureGenesis creates block 0 exactly once, if the chain is currently
// empty, then publishes it on the "blocks" topic — spec.md §4.3 "Genesis".
func (m *Miner) ensureGenesis() error {
	head, err := m.store.GetHead()
	if err != nil {
		return err
	}
	if head != nil {
		return nil
	}

	timestamp := time.Now().UTC()
	genesis := &types.Block{
		Height:     0,
		ParentHash: types.GenesisParentHash,
		Proposer:   m.cfg.ProposerID,
		Timestamp:  timestamp,
		TxCount:    0,
	}
	genesis.Hash = types.ComputeBlockHash(m.cfg.ChainID, 0, types.GenesisParentHash, timestamp)

	err = rawdb.WithSession(m.store, func(sess *rawdb.Session) error {
		return m.store.AppendBlock(sess, genesis, nil, nil)
	})
	if err != nil {
		return err
	}

	m.publisher.publish(genesis.Announcement())
	minerLog.Info("created genesis block", "hash", genesis.Hash)
	return nil
}
