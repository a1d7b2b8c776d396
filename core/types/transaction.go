package types

import (
	"time"

	"github.com/holiman/uint256"
)

// Transaction is a confirmed transaction body owned by exactly one Block
// (spec.md §3 "Transaction"). Its identity is TxHash, the canonical SHA-256
// digest of its body computed before it ever entered the mempool.
type Transaction struct {
	TxHash      string                 `json:"tx_hash"`
	BlockHeight *uint64                `json:"block_height,omitempty"`
	Sender      string                 `json:"sender"`
	Recipient   string                 `json:"recipient"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
}

// TransactionKind enumerates the sendTx request types spec.md §6 accepts.
type TransactionKind string

const (
	TxTransfer     TransactionKind = "TRANSFER"
	TxReceiptClaim TransactionKind = "RECEIPT_CLAIM"
)

// IsValidKind reports whether k is one of the two recognized transaction types.
func (k TransactionKind) IsValidKind() bool {
	return k == TxTransfer || k == TxReceiptClaim
}

// Receipt is a settled compute-work claim (spec.md §3 "Receipt").
type Receipt struct {
	ReceiptID               string                 `json:"receipt_id"`
	JobID                   string                 `json:"job_id"`
	BlockHeight             *uint64                `json:"block_height,omitempty"`
	Payload                 map[string]interface{} `json:"payload"`
	MinerSignature          map[string]interface{} `json:"miner_signature"`
	CoordinatorAttestations []map[string]interface{} `json:"coordinator_attestations"`
	MintedAmount            *uint256.Int           `json:"minted_amount,omitempty"`
	RecordedAt              time.Time              `json:"recorded_at"`
}

// Account is the balance/nonce ledger entry for an address (spec.md §3
// "Account"). Richer semantic validation (balances, nonces) is delegated to
// an external state executor; this core only stores and serves the values.
// Balance is a uint256 (github.com/holiman/uint256) rather than a native Go
// integer so minted amounts on a compute-work chain cannot silently
// overflow int64.
type Account struct {
	Address   string       `json:"address"`
	Balance   *uint256.Int `json:"balance"`
	Nonce     uint64       `json:"nonce"`
	UpdatedAt time.Time    `json:"updated_at"`
}
