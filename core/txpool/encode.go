package txpool

import (
	"github.com/aitbc-network/chain-node/core/types"
)

// computeTxHash and estimateSize mirror compute_tx_hash/_estimate_size in
// the original mempool.py: the canonical SHA-256 over the submitted content,
// and the canonical encoding's byte length as the transaction's size.
func computeTxHash(tx map[string]interface{}) (string, error) {
	return types.CanonicalHash(tx)
}

func estimateSize(tx map[string]interface{}) (int, error) {
	enc, err := types.CanonicalEncode(tx)
	if err != nil {
		return 0, err
	}
	return len(enc), nil
}

// feeOf extracts the "fee" field from tx content, defaulting to 0 per
// spec.md §3 "PendingTransaction".
func feeOf(tx map[string]interface{}) uint64 {
	v, ok := tx["fee"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case int:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case uint64:
		return n
	default:
		return 0
	}
}
