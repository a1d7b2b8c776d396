package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalEncode_SortsKeysAndStripsWhitespace(t *testing.T) {
	a, err := CanonicalEncode(map[string]interface{}{"b": 1, "a": 2})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, string(a))
}

func TestCanonicalEncode_IsOrderIndependent(t *testing.T) {
	a, err := CanonicalEncode(map[string]interface{}{"x": 1, "y": map[string]interface{}{"n": 2, "m": 1}})
	require.NoError(t, err)
	b, err := CanonicalEncode(map[string]interface{}{"y": map[string]interface{}{"m": 1, "n": 2}, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestCanonicalHash_IsDeterministic(t *testing.T) {
	payload := map[string]interface{}{"sender": "alice", "fee": 5}
	h1, err := CanonicalHash(payload)
	require.NoError(t, err)
	h2, err := CanonicalHash(payload)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Regexp(t, "^0x[0-9a-f]{64}$", h1)
}

func TestComputeBlockHash_IsDeterministicForSameInputs(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h1 := ComputeBlockHash("chain-a", 3, "0xparent", ts)
	h2 := ComputeBlockHash("chain-a", 3, "0xparent", ts)
	assert.Equal(t, h1, h2)
}

func TestComputeBlockHash_ChangesWithHeight(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h1 := ComputeBlockHash("chain-a", 3, "0xparent", ts)
	h2 := ComputeBlockHash("chain-a", 4, "0xparent", ts)
	assert.NotEqual(t, h1, h2)
}

func TestBlock_IsGenesis(t *testing.T) {
	genesis := &Block{Height: 0, ParentHash: GenesisParentHash}
	assert.True(t, genesis.IsGenesis())

	notGenesis := &Block{Height: 1, ParentHash: "0xabc"}
	assert.False(t, notGenesis.IsGenesis())
}
