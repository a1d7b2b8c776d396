package miner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitbc-network/chain-node/consensus/poa"
	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/core/txpool"
	"github.com/aitbc-network/chain-node/gossip"
)

func newTestMiner(t *testing.T, interval int) (*Miner, *rawdb.ChainStore, txpool.Pool) {
	t.Helper()
	store := rawdb.NewChainStore(rawdb.NewMemoryDatabase())
	pool := txpool.NewVolatilePool(100, 0)
	broker := gossip.NewBroker(gossip.NewInProcessBackend())
	m := New(Config{
		ChainID:           "test-chain",
		ProposerID:        "proposer-a",
		IntervalSeconds:   interval,
		MaxBlockSizeBytes: 1_000_000,
		MaxTxsPerBlock:    100,
	}, store, pool, broker, poa.NewCircuitBreaker(5, 30*time.Second))
	return m, store, pool
}

func TestMiner_EnsureGenesisIsIdempotent(t *testing.T) {
	m, store, _ := newTestMiner(t, 60)
	require.NoError(t, m.ensureGenesis())

	head, err := store.GetHead()
	require.NoError(t, err)
	require.NotNil(t, head)
	firstHash := head.Hash

	require.NoError(t, m.ensureGenesis())
	head, err = store.GetHead()
	require.NoError(t, err)
	assert.Equal(t, firstHash, head.Hash, "a second ensureGenesis call must not create another genesis block")
}

func TestMiner_ProposeBlockAppendsAndDrainsPool(t *testing.T) {
	m, store, pool := newTestMiner(t, 60)
	require.NoError(t, m.ensureGenesis())

	_, err := pool.Add(map[string]interface{}{"type": "TRANSFER", "sender": "a", "fee": float64(5)})
	require.NoError(t, err)

	require.NoError(t, m.proposeBlock())

	head, err := store.GetHead()
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, uint64(1), head.Height)
	assert.Equal(t, 1, head.TxCount)
	assert.Equal(t, 0, pool.Size(), "proposed transactions must be drained from the pool")
}

func TestMiner_RunLoopProducesBlocksOnShortInterval(t *testing.T) {
	m, store, _ := newTestMiner(t, 0) // 0s interval: every slot is immediately due
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	require.Eventually(t, func() bool {
		head, err := store.GetHead()
		return err == nil && head != nil && head.Height >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestMiner_IsHealthyReflectsBreakerState(t *testing.T) {
	m, _, _ := newTestMiner(t, 60)
	assert.True(t, m.IsHealthy())

	for i := 0; i < 5; i++ {
		m.breaker.RecordFailure()
	}
	assert.False(t, m.IsHealthy(), "five failures open the breaker")
}
