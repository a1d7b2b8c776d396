package types

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// GenesisParentHash is the sentinel parent_hash of the block at height 0.
const GenesisParentHash = "0x00"

// Block is the chain's unit of finality (spec.md §3 "Block"). Identity is
// the pair (Height, Hash); both are unique across the whole chain. A Block
// is created exactly once — by the proposer (local head) or the resolver
// (imported) — and is never mutated, only deleted during a bounded reorg.
type Block struct {
	Height     uint64    `json:"height"`
	Hash       string    `json:"hash"`
	ParentHash string    `json:"parent_hash"`
	Proposer   string    `json:"proposer"`
	Timestamp  time.Time `json:"timestamp"`
	TxCount    int       `json:"tx_count"`
	StateRoot  string    `json:"state_root,omitempty"`
}

// IsGenesis reports whether b is the height-0 block.
func (b *Block) IsGenesis() bool {
	return b.Height == 0 && b.ParentHash == GenesisParentHash
}

// ComputeBlockHash implements the block-hash function of spec.md §4.3:
// hex("0x" + SHA256(chain_id | height | parent_hash | timestamp_iso)),
// where '|' is a single 0x7C byte and timestamp_iso is the UTC ISO-8601
// rendering of ts. Transactions are deliberately excluded from the hash, an
// open-question decision preserved verbatim from spec.md §9.
func ComputeBlockHash(chainID string, height uint64, parentHash string, ts time.Time) string {
	payload := fmt.Sprintf("%s|%d|%s|%s", chainID, height, parentHash, ts.UTC().Format(time.RFC3339Nano))
	digest := sha256.Sum256([]byte(payload))
	return "0x" + fmt.Sprintf("%x", digest)
}

// BlockAnnouncement is the wire shape published on the "blocks" gossip
// topic, per spec.md §4.3 step 5 and §6's WebSocket stream contract.
type BlockAnnouncement struct {
	Height     uint64    `json:"height"`
	Hash       string    `json:"hash"`
	ParentHash string    `json:"parent_hash"`
	Timestamp  time.Time `json:"timestamp"`
	TxCount    int       `json:"tx_count"`
}

// Announcement renders the gossip/RPC-visible projection of b.
func (b *Block) Announcement() BlockAnnouncement {
	return BlockAnnouncement{
		Height:     b.Height,
		Hash:       b.Hash,
		ParentHash: b.ParentHash,
		Timestamp:  b.Timestamp,
		TxCount:    b.TxCount,
	}
}
