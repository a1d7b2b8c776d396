package rawdb

import (
	"encoding/json"

	"github.com/aitbc-network/chain-node/core/types"
)

// Persisted record encoding uses plain encoding/json, distinct from
// core/types.CanonicalEncode: canonical encoding exists solely to produce a
// stable hash input, while the on-disk representation here only needs to
// round-trip exactly what was written.

func jsonMarshalBlock(b *types.Block) ([]byte, error)   { return json.Marshal(b) }
func jsonUnmarshalBlock(data []byte, b *types.Block) error { return json.Unmarshal(data, b) }

func jsonMarshalTx(t *types.Transaction) ([]byte, error) { return json.Marshal(t) }

func jsonMarshalReceipt(r *types.Receipt) ([]byte, error) { return json.Marshal(r) }

func jsonMarshalAccount(a *types.Account) ([]byte, error) { return json.Marshal(a) }
