// Package rpc implements the Client & operator RPC facade of spec.md §6:
// REST endpoints over the mempool/storage/resolver, WebSocket streams over
// the gossip broker, metrics exposition, and health.
package rpc

import (
	"context"
	"net/http"

	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/aitbc-network/chain-node/core/chainsync"
	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/core/txpool"
	"github.com/aitbc-network/chain-node/gossip"
	"github.com/aitbc-network/chain-node/log"
	"github.com/aitbc-network/chain-node/metrics"
)

var rpcLog = log.New("rpc")

// Config bundles the RPC facade's own tunables.
type Config struct {
	BindAddr           string
	ChainID            string
	ProposerID         string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Server is the net/http-based RPC facade. Its routing table is built
// explicitly in NewServer (§9 pattern translation: decorator-based routing
// -> an explicit table), the way the teacher wires its own HTTP mux.
type Server struct {
	cfg      Config
	store    *rawdb.ChainStore
	pool     txpool.Pool
	broker   *gossip.Broker
	resolver *chainsync.Resolver

	httpServer *http.Server
	limiter    *ipRateLimiter
}

// NewServer wires every dependency the RPC surface needs.
func NewServer(cfg Config, store *rawdb.ChainStore, pool txpool.Pool, broker *gossip.Broker, resolver *chainsync.Resolver) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		pool:     pool,
		broker:   broker,
		resolver: resolver,
		limiter:  newIPRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rpc/head", s.handleGetHead)
	mux.HandleFunc("GET /rpc/blocks/{height}", s.handleGetBlock)
	mux.HandleFunc("GET /rpc/tx/{tx_hash}", s.handleGetTransaction)
	mux.HandleFunc("GET /rpc/receipts/{receipt_id}", s.handleGetReceipt)
	mux.HandleFunc("GET /rpc/getBalance/{address}", s.handleGetBalance)
	mux.HandleFunc("POST /rpc/sendTx", s.handleSendTx)
	mux.HandleFunc("POST /rpc/submitReceipt", s.handleSubmitReceipt)
	mux.HandleFunc("POST /rpc/estimateFee", s.handleEstimateFee)
	mux.HandleFunc("POST /rpc/admin/mintFaucet", s.handleMintFaucet)
	mux.HandleFunc("POST /rpc/admin/importBlock", s.handleImportBlock)
	mux.HandleFunc("GET /rpc/admin/status", s.handleSyncStatus)
	mux.HandleFunc("GET /rpc/ws/blocks", s.handleBlocksStream)
	mux.HandleFunc("GET /rpc/ws/transactions", s.handleTransactionsStream)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"*"},
	})

	var handler http.Handler = mux
	handler = s.loggingMiddleware(handler)
	handler = s.rateLimitMiddleware(handler)
	handler = corsHandler.Handler(handler)

	s.httpServer = &http.Server{
		Addr:    cfg.BindAddr,
		Handler: handler,
	}
	return s
}

// Start begins serving in the background; errors surface via a buffered
// channel consumed by the caller's shutdown path.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		rpcLog.Info("rpc server listening", "addr", s.cfg.BindAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	return errCh
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.limiter.stop()
	return s.httpServer.Shutdown(ctx)
}

