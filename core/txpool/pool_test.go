package txpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitbc-network/chain-node/core/rawdb"
)

func txWithFee(fee float64, tag string) map[string]interface{} {
	return map[string]interface{}{"type": "TRANSFER", "sender": tag, "fee": fee}
}

func newBackends(t *testing.T, maxSize int, minFee uint64) map[string]Pool {
	t.Helper()
	durable, err := NewDurablePool(rawdb.NewMemoryDatabase(), maxSize, minFee)
	require.NoError(t, err)
	return map[string]Pool{
		"volatile": NewVolatilePool(maxSize, minFee),
		"durable":  durable,
	}
}

func TestPool_AddIsIdempotent(t *testing.T) {
	for name, pool := range newBackends(t, 10, 0) {
		t.Run(name, func(t *testing.T) {
			tx := txWithFee(5, "alice")
			h1, err := pool.Add(tx)
			require.NoError(t, err)
			h2, err := pool.Add(tx)
			require.NoError(t, err)
			assert.Equal(t, h1, h2)
			assert.Equal(t, 1, pool.Size())
		})
	}
}

func TestPool_RejectsFeeBelowMin(t *testing.T) {
	for name, pool := range newBackends(t, 10, 10) {
		t.Run(name, func(t *testing.T) {
			_, err := pool.Add(txWithFee(1, "bob"))
			assert.ErrorIs(t, err, ErrFeeBelowMin)
			assert.Equal(t, 0, pool.Size())
		})
	}
}

func TestPool_EvictsLowestFeeAtCapacity(t *testing.T) {
	for name, pool := range newBackends(t, 2, 0) {
		t.Run(name, func(t *testing.T) {
			_, err := pool.Add(txWithFee(1, "low"))
			require.NoError(t, err)
			_, err = pool.Add(txWithFee(5, "mid"))
			require.NoError(t, err)
			_, err = pool.Add(txWithFee(9, "high"))
			require.NoError(t, err)

			assert.Equal(t, 2, pool.Size())
			for _, e := range pool.List() {
				assert.NotEqual(t, uint64(1), e.Fee, "lowest-fee entry should have been evicted")
			}
		})
	}
}

func TestPool_DrainOrdersByFeeDescending(t *testing.T) {
	for name, pool := range newBackends(t, 10, 0) {
		t.Run(name, func(t *testing.T) {
			_, err := pool.Add(txWithFee(1, "a"))
			require.NoError(t, err)
			_, err = pool.Add(txWithFee(9, "b"))
			require.NoError(t, err)
			_, err = pool.Add(txWithFee(5, "c"))
			require.NoError(t, err)

			drained := pool.Drain(10, 1_000_000)
			require.Len(t, drained, 3)
			assert.GreaterOrEqual(t, drained[0].Fee, drained[1].Fee)
			assert.GreaterOrEqual(t, drained[1].Fee, drained[2].Fee)
			assert.Equal(t, 0, pool.Size())
		})
	}
}

func TestPool_DrainSkipsOversizedCandidates(t *testing.T) {
	for name, pool := range newBackends(t, 10, 0) {
		t.Run(name, func(t *testing.T) {
			_, err := pool.Add(txWithFee(9, "big-payload-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
			require.NoError(t, err)
			_, err = pool.Add(txWithFee(1, "small"))
			require.NoError(t, err)

			drained := pool.Drain(10, 60)
			require.Len(t, drained, 1)
			assert.Equal(t, "small", drained[0].Content["sender"])
		})
	}
}

func TestPool_RemoveIsIdempotent(t *testing.T) {
	for name, pool := range newBackends(t, 10, 0) {
		t.Run(name, func(t *testing.T) {
			h, err := pool.Add(txWithFee(3, "x"))
			require.NoError(t, err)
			assert.True(t, pool.Remove(h))
			assert.False(t, pool.Remove(h))
			assert.Equal(t, 0, pool.Size())
		})
	}
}

func TestPool_SameFeeTieBreaksOnReceivedAt(t *testing.T) {
	for name, pool := range newBackends(t, 2, 0) {
		t.Run(name, func(t *testing.T) {
			_, err := pool.Add(txWithFee(5, "first"))
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
			_, err = pool.Add(txWithFee(5, "second"))
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)

			drained := pool.Drain(10, 1_000_000)
			require.Len(t, drained, 2)
			assert.Equal(t, "first", drained[0].Content["sender"], "equal fees drain oldest received_at first")
			assert.Equal(t, "second", drained[1].Content["sender"])

			_, err = pool.Add(txWithFee(5, "third"))
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
			_, err = pool.Add(txWithFee(5, "fourth"))
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
			_, err = pool.Add(txWithFee(5, "fifth"))
			require.NoError(t, err)

			assert.Equal(t, 2, pool.Size())
			for _, e := range pool.List() {
				assert.NotEqual(t, "fourth", e.Content["sender"], "equal fees evict newest received_at first")
			}
		})
	}
}

func TestDurablePool_SurvivesRestart(t *testing.T) {
	db := rawdb.NewMemoryDatabase()
	pool, err := NewDurablePool(db, 10, 0)
	require.NoError(t, err)
	_, err = pool.Add(txWithFee(4, "persisted"))
	require.NoError(t, err)

	reopened, err := NewDurablePool(db, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Size())
}
