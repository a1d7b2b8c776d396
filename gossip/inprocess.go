package gossip

import (
	"sync"

	"github.com/aitbc-network/chain-node/metrics"
)

var (
	metricPublications = metrics.NewRegisteredCounter("gossip_publications_total", "messages published across every topic")
	metricQueueSize    = metrics.NewRegisteredGauge("gossip_queue_size", "most recently observed subscriber queue depth")
)

// InProcessBackend fans a publish out to every current subscriber of a
// topic over bounded Go channels, guarded by a mutex — the Go rendering of
// InMemoryGossipBackend in gossip/broker.py. Publish blocks on a full
// subscriber channel rather than dropping, satisfying the no-silent-drop
// back-pressure requirement of spec.md §4.5.
type InProcessBackend struct {
	mu      sync.Mutex
	topics  map[string][]chan any
	metrics *topicMetrics
}

// NewInProcessBackend constructs an empty single-instance backend.
func NewInProcessBackend() *InProcessBackend {
	return &InProcessBackend{
		topics:  make(map[string][]chan any),
		metrics: newTopicMetrics("gossip"),
	}
}

func (b *InProcessBackend) Start() error { return nil }

// Publish enqueues message to every current subscriber of topic, in FIFO
// order per subscriber. Blocks per-channel when a subscriber's queue is
// full.
func (b *InProcessBackend) Publish(topic string, message any) error {
	b.mu.Lock()
	channels := append([]chan any(nil), b.topics[topic]...)
	b.mu.Unlock()

	for _, ch := range channels {
		ch <- message
		depth := float64(len(ch))
		metricQueueSize.Set(depth)
		b.metrics.queueSizeGauge(topic).Set(depth)
	}
	metricPublications.Inc()
	b.metrics.publicationsCounter(topic).Inc()
	return nil
}

// Subscribe opens a bounded subscription on topic.
func (b *InProcessBackend) Subscribe(topic string, maxQueueSize int) (*Subscription, error) {
	if maxQueueSize <= 0 {
		maxQueueSize = 100
	}
	ch := make(chan any, maxQueueSize)

	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], ch)
	b.updateSubscriberMetricsLocked(topic)
	b.mu.Unlock()

	sub := &Subscription{topic: topic, ch: ch}
	sub.unsubscribe = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		channels := b.topics[topic]
		for i, c := range channels {
			if c == ch {
				b.topics[topic] = append(channels[:i], channels[i+1:]...)
				break
			}
		}
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
		close(ch)
		b.updateSubscriberMetricsLocked(topic)
	}
	return sub, nil
}

// updateSubscriberMetricsLocked recomputes gossip_subscribers_total and the
// per-topic subscriber gauge for topic. Caller must hold b.mu.
func (b *InProcessBackend) updateSubscriberMetricsLocked(topic string) {
	total := 0
	for _, channels := range b.topics {
		total += len(channels)
	}
	metricSubscribersTotal.Set(float64(total))
	b.metrics.subscribersGauge(topic).Set(float64(len(b.topics[topic])))
}

func (b *InProcessBackend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, channels := range b.topics {
		for _, ch := range channels {
			close(ch)
		}
		delete(b.topics, topic)
		b.metrics.subscribersGauge(topic).Set(0)
	}
	metricSubscribersTotal.Set(0)
	return nil
}
