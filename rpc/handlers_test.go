package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitbc-network/chain-node/core/chainsync"
	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/core/txpool"
	"github.com/aitbc-network/chain-node/gossip"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := rawdb.NewChainStore(rawdb.NewMemoryDatabase())
	pool := txpool.NewVolatilePool(100, 0)
	broker := gossip.NewBroker(gossip.NewInProcessBackend())
	validator := chainsync.NewProposerSignatureValidator(nil)
	resolver := chainsync.NewResolver(store, validator, "test-chain", 10, false)

	return NewServer(Config{
		BindAddr:           "127.0.0.1:0",
		ChainID:            "test-chain",
		ProposerID:         "proposer-a",
		RateLimitPerSecond: 1000,
		RateLimitBurst:     1000,
	}, store, pool, broker, resolver)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:12345"
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-chain", body["chain_id"])
}

func TestHandleGetHead_EmptyChain(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/rpc/head", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetBalance_UnknownAddressReturnsZero(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/rpc/getBalance/0xdeadbeef", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "0", body["balance"])
}

func TestHandleSendTx_AcceptsTransfer(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/rpc/sendTx", map[string]any{
		"type": "transfer", "sender": "alice", "nonce": 1, "fee": 5,
		"payload": map[string]any{"recipient": "bob", "amount": 10},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["tx_hash"])
}

func TestHandleSendTx_RejectsUnknownType(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/rpc/sendTx", map[string]any{
		"type": "bogus", "sender": "alice",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmitReceipt_GeneratesIdsWhenAbsent(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/rpc/submitReceipt", map[string]any{
		"sender": "miner-1", "nonce": 1, "fee": 1,
		"payload": map[string]any{"result": "ok"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	entries := s.pool.List()
	require.Len(t, entries, 1)
	payload := entries[0].Content["payload"].(map[string]interface{})
	assert.NotEmpty(t, payload["receipt_id"])
	assert.NotEmpty(t, payload["job_id"])
}

func TestHandleEstimateFee(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/rpc/estimateFee", map[string]any{
		"payload": map[string]any{"recipient": "bob", "amount": 10},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Greater(t, body["estimated_fee"].(float64), float64(10))
}

func TestHandleMintFaucet_CreatesAndIncrements(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/rpc/admin/mintFaucet", map[string]any{
		"address": "0xabc", "amount": 100,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec2 := doRequest(t, s, http.MethodPost, "/rpc/admin/mintFaucet", map[string]any{
		"address": "0xabc", "amount": 50,
	})
	assert.Equal(t, http.StatusOK, rec2.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &body))
	assert.Equal(t, "150", body["balance"])
}

func TestHandleImportBlock_RejectsGapOnEmptyChain(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/rpc/admin/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/rpc/admin/importBlock", map[string]any{
		"height":      1,
		"hash":        "block-1",
		"parent_hash": "genesis",
		"proposer":    "proposer-a",
		"timestamp":   "2026-01-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body["accepted"].(bool), "height 1 on an empty chain is a gap, so it is rejected, not appended")
}

func TestHandleSyncStatus_ReportsChainID(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/rpc/admin/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "test-chain", body["chain_id"])
}

func TestHandleMintFaucet_RejectsZeroAmount(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/rpc/admin/mintFaucet", map[string]any{
		"address": "0xabc", "amount": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
