// Package gossip implements the pub/sub broker of spec.md §4.5: bounded
// per-subscriber queues, atomic backend swap, and a pluggable in-process or
// external broadcast backend.
package gossip

import (
	"sync"

	"github.com/aitbc-network/chain-node/log"
	"github.com/aitbc-network/chain-node/metrics"
)

var brokerLog = log.New("gossip.broker")

var metricSubscribersTotal = metrics.NewRegisteredGauge("gossip_subscribers_total", "subscribers across every topic")

// Subscription is a live handle on a topic's message stream. Get blocks
// until a message is published or the subscription is closed, in which
// case ok is false.
type Subscription struct {
	topic       string
	ch          chan any
	unsubscribe func()
	closeOnce   sync.Once
}

// Get blocks for the next published message.
func (s *Subscription) Get() (any, bool) {
	msg, ok := <-s.ch
	return msg, ok
}

// Close releases the subscription; idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.unsubscribe)
}

// Backend is the pluggable transport a Broker delegates to, mirroring
// GossipBackend in gossip/broker.py: InProcessBackend for a single node,
// BroadcastBackend to fan messages across a cluster.
type Backend interface {
	Start() error
	Publish(topic string, message any) error
	Subscribe(topic string, maxQueueSize int) (*Subscription, error)
	Shutdown() error
}

// Broker is the spec.md §4.5 entry point: Publish/Subscribe delegate to the
// active Backend, swappable at runtime via SetBackend under a mutex.
type Broker struct {
	mu      sync.Mutex
	backend Backend
	started bool
}

// NewBroker constructs a Broker over the given initial backend.
func NewBroker(backend Backend) *Broker {
	return &Broker{backend: backend}
}

func (b *Broker) ensureStarted() (Backend, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		if err := b.backend.Start(); err != nil {
			return nil, err
		}
		b.started = true
	}
	return b.backend, nil
}

// Publish sends message on topic through the active backend.
func (b *Broker) Publish(topic string, message any) error {
	backend, err := b.ensureStarted()
	if err != nil {
		return err
	}
	return backend.Publish(topic, message)
}

// Subscribe opens a bounded subscription on topic through the active
// backend.
func (b *Broker) Subscribe(topic string, maxQueueSize int) (*Subscription, error) {
	backend, err := b.ensureStarted()
	if err != nil {
		return nil, err
	}
	return backend.Subscribe(topic, maxQueueSize)
}

// SetBackend atomically swaps the active backend, starting the new one
// before shutting down the old one — mirrors GossipBroker.set_backend.
func (b *Broker) SetBackend(backend Backend) error {
	if err := backend.Start(); err != nil {
		return err
	}
	b.mu.Lock()
	previous := b.backend
	b.backend = backend
	b.started = true
	b.mu.Unlock()

	brokerLog.Info("gossip backend swapped")
	return previous.Shutdown()
}

// Shutdown stops the active backend.
func (b *Broker) Shutdown() error {
	b.mu.Lock()
	backend := b.backend
	b.started = false
	b.mu.Unlock()
	metricSubscribersTotal.Set(0)
	return backend.Shutdown()
}
