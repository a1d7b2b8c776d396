package gossip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTopicSuffix(t *testing.T) {
	assert.Equal(t, "blocks", sanitizeTopicSuffix("blocks"))
	assert.Equal(t, "tx_receipts", sanitizeTopicSuffix("tx.receipts"))
	assert.Equal(t, "unknown", sanitizeTopicSuffix("___"))
}

func TestTopicMetrics_LazyRegistrationIsCached(t *testing.T) {
	tm := newTopicMetrics("gossip_test")
	c1 := tm.publicationsCounter("blocks")
	c2 := tm.publicationsCounter("blocks")
	assert.Same(t, c1, c2, "repeated lookups for the same topic must return the same registered counter")

	g1 := tm.subscribersGauge("transactions")
	g2 := tm.subscribersGauge("transactions")
	assert.Same(t, g1, g2)
}

func TestInProcessBackend_PublishUpdatesPerTopicMetrics(t *testing.T) {
	b := NewInProcessBackend()
	sub, err := b.Subscribe("blocks", 4)
	assert.NoError(t, err)
	defer sub.Close()

	assert.NoError(t, b.Publish("blocks", "hello"))
	assert.Contains(t, b.metrics.publications, "blocks")
	assert.Contains(t, b.metrics.queueSize, "blocks")
}
