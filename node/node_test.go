package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitbc-network/chain-node/consensus/poa"
	"github.com/aitbc-network/chain-node/core/chainsync"
	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/core/txpool"
	"github.com/aitbc-network/chain-node/gossip"
	"github.com/aitbc-network/chain-node/miner"
	"github.com/aitbc-network/chain-node/rpc"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	store := rawdb.NewChainStore(rawdb.NewMemoryDatabase())
	pool := txpool.NewVolatilePool(100, 0)
	broker := gossip.NewBroker(gossip.NewInProcessBackend())
	validator := chainsync.NewProposerSignatureValidator(nil)
	resolver := chainsync.NewResolver(store, validator, "test-chain", 10, false)
	proposer := miner.New(miner.Config{
		ChainID: "test-chain", ProposerID: "proposer-a",
		IntervalSeconds: 60, MaxBlockSizeBytes: 1_000_000, MaxTxsPerBlock: 100,
	}, store, pool, broker, poa.NewCircuitBreaker(5, 30*time.Second))
	rpcServer := rpc.NewServer(rpc.Config{
		BindAddr: "127.0.0.1:0", ChainID: "test-chain", ProposerID: "proposer-a",
		RateLimitPerSecond: 1000, RateLimitBurst: 1000,
	}, store, pool, broker, resolver)

	return New(store, pool, broker, resolver, proposer, rpcServer)
}

func TestNode_StartCreatesGenesisAndStopShutsDownCleanly(t *testing.T) {
	n := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, n.Start(ctx))

	head, err := n.Store.GetHead()
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, uint64(0), head.Height)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.NoError(t, n.Stop(stopCtx))
}
