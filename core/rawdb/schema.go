package rawdb

import "encoding/binary"

// Key-prefix families, mirroring the teacher's own prefix + hash -> value
// accessor idiom in core/rawdb/schema_rollup.go (headerBaseFeesPrefix).
// These realize the secondary indices required by spec.md §6 "Persistent
// state layout".
var (
	headKeyPrefix        = []byte("h") // head -> height (single key)
	blockByHeightPrefix  = []byte("bH") // bH + height(BE) -> encoded block
	blockByHashPrefix    = []byte("bh") // bh + hash -> height(BE), secondary index
	txByHashPrefix       = []byte("tx") // tx + tx_hash -> encoded transaction
	txByHeightPrefix     = []byte("tH") // tH + height(BE) + tx_hash -> tx_hash, secondary index
	receiptByIDPrefix    = []byte("rc") // rc + receipt_id -> encoded receipt
	receiptByHeightPrefix = []byte("rH") // rH + height(BE) + receipt_id -> receipt_id
	accountPrefix        = []byte("ac") // ac + address -> encoded account
)

var headKey = append(append([]byte{}, headKeyPrefix...), []byte("current")...)

func encodeHeight(height uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, height)
	return buf
}

func decodeHeight(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}

func blockByHeightKey(height uint64) []byte {
	return append(append([]byte{}, blockByHeightPrefix...), encodeHeight(height)...)
}

func blockByHashKey(hash string) []byte {
	return append(append([]byte{}, blockByHashPrefix...), []byte(hash)...)
}

func txByHashKey(txHash string) []byte {
	return append(append([]byte{}, txByHashPrefix...), []byte(txHash)...)
}

func txByHeightKey(height uint64, txHash string) []byte {
	k := append(append([]byte{}, txByHeightPrefix...), encodeHeight(height)...)
	return append(k, []byte(txHash)...)
}

func receiptByIDKey(receiptID string) []byte {
	return append(append([]byte{}, receiptByIDPrefix...), []byte(receiptID)...)
}

func receiptByHeightKey(height uint64, receiptID string) []byte {
	k := append(append([]byte{}, receiptByHeightPrefix...), encodeHeight(height)...)
	return append(k, []byte(receiptID)...)
}

func accountKey(address string) []byte {
	return append(append([]byte{}, accountPrefix...), []byte(address)...)
}
