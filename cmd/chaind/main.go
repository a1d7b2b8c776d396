// Command chaind runs a single federated compute-work chain participant:
// storage, mempool, PoA proposer, chain sync resolver, gossip broker, and
// the RPC facade, wired together by flag/environment configuration — the
// Go analogue of the original's uvicorn-launched FastAPI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/aitbc-network/chain-node/consensus/poa"
	"github.com/aitbc-network/chain-node/core/chainsync"
	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/core/txpool"
	"github.com/aitbc-network/chain-node/gossip"
	"github.com/aitbc-network/chain-node/log"
	"github.com/aitbc-network/chain-node/miner"
	"github.com/aitbc-network/chain-node/node"
	"github.com/aitbc-network/chain-node/params"
	"github.com/aitbc-network/chain-node/rpc"
)

var mainLog = log.New("chaind")

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "chaind",
		Usage: "run a federated compute-work chain participant",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "optional TOML config overlay path"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		mainLog.Crit("chaind exited with error", "err", err)
	}
}

func run(c *cli.Context) error {
	cfg, err := params.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	store := rawdb.NewChainStore(db)

	pool, err := openMempool(cfg)
	if err != nil {
		return fmt.Errorf("open mempool: %w", err)
	}

	backend, err := gossip.NewBackend(cfg.GossipBackend, cfg.GossipBroadcastURL)
	if err != nil {
		return fmt.Errorf("init gossip backend: %w", err)
	}
	broker := gossip.NewBroker(backend)

	validator := chainsync.NewProposerSignatureValidator(cfg.TrustedProposers)
	resolver := chainsync.NewResolver(store, validator, cfg.ChainID, cfg.MaxReorgDepth, cfg.SyncValidateSignatures)

	breaker := poa.NewCircuitBreaker(cfg.CircuitBreakerThreshold, time.Duration(cfg.CircuitBreakerTimeout)*time.Second)
	proposer := miner.New(miner.Config{
		ChainID:           cfg.ChainID,
		ProposerID:        cfg.ProposerID,
		IntervalSeconds:   cfg.BlockTimeSeconds,
		MaxBlockSizeBytes: cfg.MaxBlockSizeBytes,
		MaxTxsPerBlock:    cfg.MaxTxsPerBlock,
	}, store, pool, broker, breaker)

	rpcServer := rpc.NewServer(rpc.Config{
		BindAddr:           fmt.Sprintf("%s:%d", cfg.RPCBindHost, cfg.RPCBindPort),
		ChainID:            cfg.ChainID,
		ProposerID:         cfg.ProposerID,
		RateLimitPerSecond: 20,
		RateLimitBurst:     40,
	}, store, pool, broker, resolver)

	n := node.New(store, pool, broker, resolver, proposer, rpcServer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	mainLog.Info("chaind running", "chain_id", cfg.ChainID, "proposer_id", cfg.ProposerID, "rpc_addr", fmt.Sprintf("%s:%d", cfg.RPCBindHost, cfg.RPCBindPort))

	<-ctx.Done()
	mainLog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return n.Stop(shutdownCtx)
}

func openDatabase(dataDir string) (rawdb.KeyValueStore, error) {
	if dataDir == "" || dataDir == "memory" {
		return rawdb.NewMemoryDatabase(), nil
	}
	return rawdb.NewPebbleDatabase(dataDir)
}

func openMempool(cfg *params.Config) (txpool.Pool, error) {
	switch cfg.MempoolBackend {
	case "database":
		db, err := openDatabase(cfg.DataDir + ".mempool")
		if err != nil {
			return nil, err
		}
		return txpool.NewDurablePool(db, cfg.MempoolMaxSize, cfg.MinFee)
	default:
		return txpool.NewVolatilePool(cfg.MempoolMaxSize, cfg.MinFee), nil
	}
}
