package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_PublishSubscribeRoundTrip(t *testing.T) {
	broker := NewBroker(NewInProcessBackend())
	sub, err := broker.Subscribe("blocks", 4)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, broker.Publish("blocks", map[string]any{"height": 1}))

	msg, ok := sub.Get()
	require.True(t, ok)
	assert.Equal(t, 1, msg.(map[string]any)["height"])
}

func TestBroker_FIFOOrderingPerSubscriber(t *testing.T) {
	broker := NewBroker(NewInProcessBackend())
	sub, err := broker.Subscribe("blocks", 8)
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, broker.Publish("blocks", i))
	}
	for i := 0; i < 5; i++ {
		msg, ok := sub.Get()
		require.True(t, ok)
		assert.Equal(t, i, msg)
	}
}

func TestBroker_PublishBlocksWhenSubscriberQueueFull(t *testing.T) {
	broker := NewBroker(NewInProcessBackend())
	sub, err := broker.Subscribe("blocks", 1)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, broker.Publish("blocks", "first"))

	published := make(chan struct{})
	go func() {
		_ = broker.Publish("blocks", "second")
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("second publish should block while the subscriber queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	msg, ok := sub.Get()
	require.True(t, ok)
	assert.Equal(t, "first", msg)

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publish should have unblocked once a slot freed up")
	}
}

func TestBroker_CloseStopsDelivery(t *testing.T) {
	broker := NewBroker(NewInProcessBackend())
	sub, err := broker.Subscribe("blocks", 4)
	require.NoError(t, err)

	sub.Close()
	_, ok := sub.Get()
	assert.False(t, ok)
}

func TestBroker_SetBackendSwapsAtomically(t *testing.T) {
	broker := NewBroker(NewInProcessBackend())
	require.NoError(t, broker.Publish("blocks", "warm-up"))

	next := NewInProcessBackend()
	require.NoError(t, broker.SetBackend(next))

	sub, err := broker.Subscribe("blocks", 4)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, broker.Publish("blocks", "on-new-backend"))
	msg, ok := sub.Get()
	require.True(t, ok)
	assert.Equal(t, "on-new-backend", msg)
}
