package miner

import (
	"sync"

	"github.com/aitbc-network/chain-node/gossip"
)

// publisher is a small bounded worker queue that publishes block
// announcements to the gossip broker only after the owning commit has
// returned — the Go rendering of the original's fire-and-forget
// asyncio.create_task(gossip_broker.publish(...)) call (spec.md §9 pattern
// translation), bounded here instead of spawning an unbounded goroutine per
// block. Publish failures are logged, never fail production, since the
// block is already durably committed by the time this runs.
type publisher struct {
	broker *gossip.Broker
	queue  chan any
	wg     sync.WaitGroup
	once   sync.Once
}

func newPublisher(broker *gossip.Broker, capacity int) *publisher {
	return &publisher{broker: broker, queue: make(chan any, capacity)}
}

func (p *publisher) start() {
	p.once.Do(func() {
		p.wg.Add(1)
		go p.run()
	})
}

func (p *publisher) run() {
	defer p.wg.Done()
	for msg := range p.queue {
		if err := p.broker.Publish("blocks", msg); err != nil {
			minerLog.Warn("gossip publish failed", "err", err)
		}
	}
}

// publish enqueues msg for asynchronous delivery; never blocks production
// for longer than it takes to acquire a queue slot.
func (p *publisher) publish(msg any) {
	p.queue <- msg
}

func (p *publisher) stop() {
	close(p.queue)
	p.wg.Wait()
	p.queue = make(chan any, cap(p.queue))
	p.once = sync.Once{}
}
