package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/core/types"
	"github.com/aitbc-network/chain-node/metrics"
)

var (
	metricSendTxTotal        = metrics.NewRegisteredCounter("rpc_send_tx_total", "sendTx calls")
	metricSubmitReceiptTotal = metrics.NewRegisteredCounter("rpc_submit_receipt_total", "submitReceipt calls")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleGetHead(w http.ResponseWriter, r *http.Request) {
	head, err := s.store.GetHead()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if head == nil {
		writeError(w, http.StatusNotFound, "no blocks yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"height":    head.Height,
		"hash":      head.Hash,
		"timestamp": head.Timestamp.Format(time.RFC3339Nano),
		"tx_count":  head.TxCount,
	})
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(r.PathValue("height"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height")
		return
	}
	block, err := s.store.GetBlockByHeight(height)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if block == nil {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"height":      block.Height,
		"hash":        block.Hash,
		"parent_hash": block.ParentHash,
		"timestamp":   block.Timestamp.Format(time.RFC3339Nano),
		"tx_count":    block.TxCount,
		"state_root":  block.StateRoot,
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	txHash := r.PathValue("tx_hash")
	tx, err := s.store.GetTransactionByHash(txHash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if tx == nil {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tx_hash":      tx.TxHash,
		"block_height": tx.BlockHeight,
		"sender":       tx.Sender,
		"recipient":    tx.Recipient,
		"payload":      tx.Payload,
		"created_at":   tx.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receiptID := r.PathValue("receipt_id")
	receipt, err := s.store.GetReceiptByID(receiptID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if receipt == nil {
		writeError(w, http.StatusNotFound, "receipt not found")
		return
	}
	minted := "0"
	if receipt.MintedAmount != nil {
		minted = receipt.MintedAmount.Dec()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"receipt_id":               receipt.ReceiptID,
		"job_id":                   receipt.JobID,
		"payload":                  receipt.Payload,
		"miner_signature":          receipt.MinerSignature,
		"coordinator_attestations": receipt.CoordinatorAttestations,
		"minted_amount":            minted,
		"recorded_at":              receipt.RecordedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	account, err := s.store.GetAccount(address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if account == nil {
		writeJSON(w, http.StatusOK, map[string]any{"address": address, "balance": "0", "nonce": 0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":    account.Address,
		"balance":    account.Balance.Dec(),
		"nonce":      account.Nonce,
		"updated_at": account.UpdatedAt.Format(time.RFC3339Nano),
	})
}

// transactionRequest mirrors TransactionRequest in rpc/router.py.
type transactionRequest struct {
	Type    string                 `json:"type"`
	Sender  string                 `json:"sender"`
	Nonce   int64                  `json:"nonce"`
	Fee     uint64                 `json:"fee"`
	Payload map[string]interface{} `json:"payload"`
	Sig     string                 `json:"sig,omitempty"`
}

func (s *Server) handleSendTx(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	kind := types.TransactionKind(normalizeUpper(req.Type))
	if !kind.IsValidKind() {
		writeError(w, http.StatusBadRequest, "unsupported transaction type: "+req.Type)
		return
	}

	txHash, err := s.submitTx(kind, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metricSendTxTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"tx_hash": txHash})
}

// receiptSubmissionRequest mirrors ReceiptSubmissionRequest in rpc/router.py.
type receiptSubmissionRequest struct {
	Sender  string                 `json:"sender"`
	Nonce   int64                  `json:"nonce"`
	Fee     uint64                 `json:"fee"`
	Payload map[string]interface{} `json:"payload"`
	Sig     string                 `json:"sig,omitempty"`
}

func (s *Server) handleSubmitReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Payload == nil {
		req.Payload = map[string]interface{}{}
	}
	if _, ok := req.Payload["receipt_id"]; !ok {
		req.Payload["receipt_id"] = uuid.NewString()
	}
	if _, ok := req.Payload["job_id"]; !ok {
		req.Payload["job_id"] = uuid.NewString()
	}

	txHash, err := s.submitTx(types.TxReceiptClaim, transactionRequest{
		Type: string(types.TxReceiptClaim), Sender: req.Sender, Nonce: req.Nonce,
		Fee: req.Fee, Payload: req.Payload, Sig: req.Sig,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metricSubmitReceiptTotal.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"tx_hash": txHash})
}

func (s *Server) submitTx(kind types.TransactionKind, req transactionRequest) (string, error) {
	txDict := map[string]interface{}{
		"type":    string(kind),
		"sender":  req.Sender,
		"nonce":   req.Nonce,
		"fee":     req.Fee,
		"payload": req.Payload,
	}
	if req.Sig != "" {
		txDict["sig"] = req.Sig
	}
	return s.pool.Add(txDict)
}

// estimateFeeRequest mirrors EstimateFeeRequest in rpc/router.py.
type estimateFeeRequest struct {
	Type    string                 `json:"type,omitempty"`
	Payload map[string]interface{} `json:"payload"`
}

func (s *Server) handleEstimateFee(w http.ResponseWriter, r *http.Request) {
	var req estimateFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	const baseFee = 10
	const perByte = 1

	enc, err := types.CanonicalEncode(req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "payload not encodable")
		return
	}
	estimated := baseFee + perByte*len(enc)

	txType := normalizeUpper(req.Type)
	if txType == "" {
		txType = string(types.TxTransfer)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":           txType,
		"base_fee":       baseFee,
		"payload_bytes":  len(enc),
		"estimated_fee":  estimated,
	})
}

// mintFaucetRequest mirrors MintFaucetRequest in rpc/router.py — carried
// over from original_source per spec.md §9 since it is the Account
// entity's only writer in this core.
type mintFaucetRequest struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

func (s *Server) handleMintFaucet(w http.ResponseWriter, r *http.Request) {
	var req mintFaucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Address == "" || req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "address and positive amount required")
		return
	}

	amount := new(uint256.Int).SetUint64(req.Amount)
	var newBalance *uint256.Int

	existing, err := s.store.GetAccount(req.Address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if existing == nil {
		newBalance = amount
		existing = &types.Account{Address: req.Address, Balance: newBalance, UpdatedAt: time.Now().UTC()}
	} else {
		newBalance = new(uint256.Int).Add(existing.Balance, amount)
		existing.Balance = newBalance
		existing.UpdatedAt = time.Now().UTC()
	}

	err = rawdb.WithSession(s.store, func(sess *rawdb.Session) error {
		return s.store.UpsertAccount(sess, existing)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"address": req.Address, "balance": newBalance.Dec()})
}

// importTxRequest is the wire shape of one transaction carried inside an
// importBlockRequest.
type importTxRequest struct {
	TxHash    string                 `json:"tx_hash"`
	Sender    string                 `json:"sender"`
	Recipient string                 `json:"recipient"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// importBlockRequest mirrors the import_block(block_data, transactions?)
// entry point of sync.py's ChainSync, carried over RPC as the admin-facing
// counterpart to the gossip-fed import path.
type importBlockRequest struct {
	Height       uint64            `json:"height"`
	Hash         string            `json:"hash"`
	ParentHash   string            `json:"parent_hash"`
	Proposer     string            `json:"proposer"`
	Timestamp    time.Time         `json:"timestamp"`
	StateRoot    string            `json:"state_root,omitempty"`
	Transactions []importTxRequest `json:"transactions,omitempty"`
}

// handleImportBlock is the RPC admin surface for the chain sync & fork
// resolver's entry point, the "RPC admin call" spec.md §4.4 lists alongside
// incoming gossip as a trigger for Resolver.Import.
func (s *Server) handleImportBlock(w http.ResponseWriter, r *http.Request) {
	var req importBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	block := &types.Block{
		Height:     req.Height,
		Hash:       req.Hash,
		ParentHash: req.ParentHash,
		Proposer:   req.Proposer,
		Timestamp:  req.Timestamp,
		StateRoot:  req.StateRoot,
	}
	var txs []*types.Transaction
	for _, t := range req.Transactions {
		txs = append(txs, &types.Transaction{
			TxHash:    t.TxHash,
			Sender:    t.Sender,
			Recipient: t.Recipient,
			Payload:   t.Payload,
			CreatedAt: t.CreatedAt,
		})
	}

	result, err := s.resolver.Import(block, txs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "import failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted":    result.Accepted,
		"height":      result.Height,
		"block_hash":  result.BlockHash,
		"reason":      result.Reason,
		"reorged":     result.Reorged,
		"reorg_depth": result.ReorgDepth,
	})
}

// handleSyncStatus exposes Resolver.Status, carried over from sync.py's
// ChainSync.get_sync_status.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.resolver.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chain_id":            status.ChainID,
		"head_height":         status.HeadHeight,
		"head_hash":           status.HeadHash,
		"head_proposer":       status.HeadProposer,
		"head_timestamp":      status.HeadTimestamp.Format(time.RFC3339Nano),
		"total_blocks":        status.TotalBlocks,
		"validate_signatures": status.ValidateSignatures,
		"trusted_proposers":   status.TrustedProposers,
		"max_reorg_depth":     status.MaxReorgDepth,
	})
}

func normalizeUpper(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"chain_id":    s.cfg.ChainID,
		"proposer_id": s.cfg.ProposerID,
	})
}
