package rawdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitbc-network/chain-node/core/types"
)

func newTestStore(t *testing.T) *ChainStore {
	t.Helper()
	return NewChainStore(NewMemoryDatabase())
}

func block(height uint64, parent string) *types.Block {
	return &types.Block{
		Height:     height,
		Hash:       types.ComputeBlockHash("test-chain", height, parent, time.Unix(int64(height), 0)),
		ParentHash: parent,
		Proposer:   "proposer-a",
		Timestamp:  time.Unix(int64(height), 0).UTC(),
		TxCount:    0,
	}
}

func TestChainStore_GetHeadEmpty(t *testing.T) {
	store := newTestStore(t)
	head, err := store.GetHead()
	require.NoError(t, err)
	assert.Nil(t, head)
}

func TestChainStore_AppendAndReadBack(t *testing.T) {
	store := newTestStore(t)
	genesis := block(0, types.GenesisParentHash)

	err := WithSession(store, func(sess *Session) error {
		return store.AppendBlock(sess, genesis, nil, nil)
	})
	require.NoError(t, err)

	head, err := store.GetHead()
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, genesis.Hash, head.Hash)

	fetched, err := store.GetBlockByHeight(0)
	require.NoError(t, err)
	assert.Equal(t, genesis.Hash, fetched.Hash)

	byHash, err := store.GetBlockByHash(genesis.Hash)
	require.NoError(t, err)
	assert.Equal(t, genesis.Height, byHash.Height)
}

func TestChainStore_AppendBlockRejectsDuplicateHeight(t *testing.T) {
	store := newTestStore(t)
	genesis := block(0, types.GenesisParentHash)
	require.NoError(t, WithSession(store, func(sess *Session) error {
		return store.AppendBlock(sess, genesis, nil, nil)
	}))

	dup := block(0, types.GenesisParentHash)
	dup.Hash = "0xdifferent"
	err := WithSession(store, func(sess *Session) error {
		return store.AppendBlock(sess, dup, nil, nil)
	})
	assert.Error(t, err)
	assert.IsType(t, &DuplicateHeightError{}, err)
}

func TestWithSession_DiscardsOnError(t *testing.T) {
	store := newTestStore(t)
	genesis := block(0, types.GenesisParentHash)

	boom := assert.AnError
	err := WithSession(store, func(sess *Session) error {
		require.NoError(t, store.AppendBlock(sess, genesis, nil, nil))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	head, err := store.GetHead()
	require.NoError(t, err)
	assert.Nil(t, head, "buffered writes must not be committed when fn returns an error")
}

func TestChainStore_DeleteBlocksFromRewindsHead(t *testing.T) {
	store := newTestStore(t)
	genesis := block(0, types.GenesisParentHash)
	b1 := block(1, genesis.Hash)
	b2 := block(2, b1.Hash)

	require.NoError(t, WithSession(store, func(sess *Session) error {
		require.NoError(t, store.AppendBlock(sess, genesis, nil, nil))
		require.NoError(t, store.AppendBlock(sess, b1, nil, nil))
		return store.AppendBlock(sess, b2, nil, nil)
	}))
	assert.Equal(t, 3, store.CountBlocks())

	require.NoError(t, WithSession(store, func(sess *Session) error {
		return store.DeleteBlocksFrom(sess, 1)
	}))

	assert.Equal(t, 1, store.CountBlocks())
	head, err := store.GetHead()
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, uint64(0), head.Height)
}

func TestChainStore_UpsertAccount(t *testing.T) {
	store := newTestStore(t)
	acct := &types.Account{Address: "0xabc", UpdatedAt: time.Now().UTC()}
	require.NoError(t, WithSession(store, func(sess *Session) error {
		return store.UpsertAccount(sess, acct)
	}))

	fetched, err := store.GetAccount("0xabc")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "0xabc", fetched.Address)
}
