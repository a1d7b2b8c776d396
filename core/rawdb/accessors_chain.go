package rawdb

import (
	"encoding/json"

	"github.com/aitbc-network/chain-node/core/types"
	"github.com/aitbc-network/chain-node/log"
)

var accessorLog = log.New("rawdb.accessors")

// ReadHead returns the height of the current chain head, or (0, false) if
// the chain is empty. Mirrors the teacher's ReadHeadBlockHash two-value
// accessor idiom.
func ReadHead(db KeyValueReader) (uint64, bool) {
	data, err := db.Get(headKey)
	if err != nil {
		accessorLog.Crit("failed to read head", "err", err)
	}
	if data == nil {
		return 0, false
	}
	return decodeHeight(data), true
}

// WriteHead records height as the new chain head.
func WriteHead(db KeyValueWriter, height uint64) {
	if err := db.Put(headKey, encodeHeight(height)); err != nil {
		accessorLog.Crit("failed to write head", "err", err)
	}
}

// ReadBlock returns the block committed at height, or nil if absent.
func ReadBlock(db KeyValueReader, height uint64) *types.Block {
	data, err := db.Get(blockByHeightKey(height))
	if err != nil {
		accessorLog.Crit("failed to read block", "height", height, "err", err)
	}
	if data == nil {
		return nil
	}
	block := new(types.Block)
	if err := json.Unmarshal(data, block); err != nil {
		accessorLog.Crit("failed to decode block", "height", height, "err", err)
	}
	return block
}

// WriteBlock persists block at its height and indexes hash -> height.
func WriteBlock(db KeyValueWriter, block *types.Block) {
	data, err := json.Marshal(block)
	if err != nil {
		accessorLog.Crit("failed to encode block", "height", block.Height, "err", err)
	}
	if err := db.Put(blockByHeightKey(block.Height), data); err != nil {
		accessorLog.Crit("failed to write block", "height", block.Height, "err", err)
	}
	if err := db.Put(blockByHashKey(block.Hash), encodeHeight(block.Height)); err != nil {
		accessorLog.Crit("failed to write block hash index", "hash", block.Hash, "err", err)
	}
}

// DeleteBlock removes the block at height and its hash index entry.
func DeleteBlock(db KeyValueReader, dbw KeyValueWriter, height uint64) {
	block := ReadBlock(db, height)
	if err := dbw.Delete(blockByHeightKey(height)); err != nil {
		accessorLog.Crit("failed to delete block", "height", height, "err", err)
	}
	if block != nil {
		if err := dbw.Delete(blockByHashKey(block.Hash)); err != nil {
			accessorLog.Crit("failed to delete block hash index", "hash", block.Hash, "err", err)
		}
	}
}

// ReadHeightByHash resolves a block hash to its height via the secondary
// index, or (0, false) if unknown.
func ReadHeightByHash(db KeyValueReader, hash string) (uint64, bool) {
	data, err := db.Get(blockByHashKey(hash))
	if err != nil {
		accessorLog.Crit("failed to read block hash index", "hash", hash, "err", err)
	}
	if data == nil {
		return 0, false
	}
	return decodeHeight(data), true
}

// ReadTransaction returns the confirmed transaction with the given hash, or
// nil if absent.
func ReadTransaction(db KeyValueReader, txHash string) *types.Transaction {
	data, err := db.Get(txByHashKey(txHash))
	if err != nil {
		accessorLog.Crit("failed to read transaction", "tx_hash", txHash, "err", err)
	}
	if data == nil {
		return nil
	}
	tx := new(types.Transaction)
	if err := json.Unmarshal(data, tx); err != nil {
		accessorLog.Crit("failed to decode transaction", "tx_hash", txHash, "err", err)
	}
	return tx
}

// WriteTransaction persists tx and indexes it under its containing height.
func WriteTransaction(db KeyValueWriter, height uint64, tx *types.Transaction) {
	data, err := json.Marshal(tx)
	if err != nil {
		accessorLog.Crit("failed to encode transaction", "tx_hash", tx.TxHash, "err", err)
	}
	if err := db.Put(txByHashKey(tx.TxHash), data); err != nil {
		accessorLog.Crit("failed to write transaction", "tx_hash", tx.TxHash, "err", err)
	}
	if err := db.Put(txByHeightKey(height, tx.TxHash), []byte(tx.TxHash)); err != nil {
		accessorLog.Crit("failed to write transaction height index", "tx_hash", tx.TxHash, "err", err)
	}
}

// DeleteTransactionsAtHeight removes every transaction indexed under height,
// used while rolling back blocks during a reorg.
func DeleteTransactionsAtHeight(db KeyValueStore, height uint64) {
	it := db.NewIterator(append(append([]byte{}, txByHeightPrefix...), encodeHeight(height)...))
	defer it.Release()
	var txHashes []string
	for it.Next() {
		txHashes = append(txHashes, string(it.Value()))
	}
	for _, txHash := range txHashes {
		if err := db.Delete(txByHashKey(txHash)); err != nil {
			accessorLog.Crit("failed to delete transaction", "tx_hash", txHash, "err", err)
		}
		if err := db.Delete(txByHeightKey(height, txHash)); err != nil {
			accessorLog.Crit("failed to delete transaction height index", "tx_hash", txHash, "err", err)
		}
	}
}

// ReadReceipt returns the settled receipt with the given id, or nil if absent.
func ReadReceipt(db KeyValueReader, receiptID string) *types.Receipt {
	data, err := db.Get(receiptByIDKey(receiptID))
	if err != nil {
		accessorLog.Crit("failed to read receipt", "receipt_id", receiptID, "err", err)
	}
	if data == nil {
		return nil
	}
	receipt := new(types.Receipt)
	if err := json.Unmarshal(data, receipt); err != nil {
		accessorLog.Crit("failed to decode receipt", "receipt_id", receiptID, "err", err)
	}
	return receipt
}

// WriteReceipt persists receipt and indexes it under its containing height.
func WriteReceipt(db KeyValueWriter, height uint64, receipt *types.Receipt) {
	data, err := json.Marshal(receipt)
	if err != nil {
		accessorLog.Crit("failed to encode receipt", "receipt_id", receipt.ReceiptID, "err", err)
	}
	if err := db.Put(receiptByIDKey(receipt.ReceiptID), data); err != nil {
		accessorLog.Crit("failed to write receipt", "receipt_id", receipt.ReceiptID, "err", err)
	}
	if err := db.Put(receiptByHeightKey(height, receipt.ReceiptID), []byte(receipt.ReceiptID)); err != nil {
		accessorLog.Crit("failed to write receipt height index", "receipt_id", receipt.ReceiptID, "err", err)
	}
}

// DeleteReceiptsAtHeight removes every receipt indexed under height.
func DeleteReceiptsAtHeight(db KeyValueStore, height uint64) {
	it := db.NewIterator(append(append([]byte{}, receiptByHeightPrefix...), encodeHeight(height)...))
	defer it.Release()
	var receiptIDs []string
	for it.Next() {
		receiptIDs = append(receiptIDs, string(it.Value()))
	}
	for _, receiptID := range receiptIDs {
		if err := db.Delete(receiptByIDKey(receiptID)); err != nil {
			accessorLog.Crit("failed to delete receipt", "receipt_id", receiptID, "err", err)
		}
		if err := db.Delete(receiptByHeightKey(height, receiptID)); err != nil {
			accessorLog.Crit("failed to delete receipt height index", "receipt_id", receiptID, "err", err)
		}
	}
}

// ReadAccount returns the ledger entry for address, or nil if never seen.
func ReadAccount(db KeyValueReader, address string) *types.Account {
	data, err := db.Get(accountKey(address))
	if err != nil {
		accessorLog.Crit("failed to read account", "address", address, "err", err)
	}
	if data == nil {
		return nil
	}
	account := new(types.Account)
	if err := json.Unmarshal(data, account); err != nil {
		accessorLog.Crit("failed to decode account", "address", address, "err", err)
	}
	return account
}

// WriteAccount upserts the ledger entry for account.Address.
func WriteAccount(db KeyValueWriter, account *types.Account) {
	data, err := json.Marshal(account)
	if err != nil {
		accessorLog.Crit("failed to encode account", "address", account.Address, "err", err)
	}
	if err := db.Put(accountKey(account.Address), data); err != nil {
		accessorLog.Crit("failed to write account", "address", account.Address, "err", err)
	}
}
