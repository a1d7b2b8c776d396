// Package node wires Storage, Mempool, Broker, Proposer, Resolver, and the
// RPC facade into one process and owns their startup/shutdown ordering —
// the Go rendering of the original's application lifespan context manager
// in main.py (spec.md §9 pattern translation: "async context manager
// lifespan -> an explicit Node.Start/Stop lifecycle").
package node

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aitbc-network/chain-node/core/chainsync"
	"github.com/aitbc-network/chain-node/core/rawdb"
	"github.com/aitbc-network/chain-node/core/txpool"
	"github.com/aitbc-network/chain-node/core/types"
	"github.com/aitbc-network/chain-node/gossip"
	"github.com/aitbc-network/chain-node/log"
	"github.com/aitbc-network/chain-node/miner"
	"github.com/aitbc-network/chain-node/rpc"
)

var nodeLog = log.New("node")

// Node owns every long-lived component of a running chain participant.
type Node struct {
	Store    *rawdb.ChainStore
	Pool     txpool.Pool
	Broker   *gossip.Broker
	Resolver *chainsync.Resolver
	Proposer *miner.Miner
	RPC      *rpc.Server

	rpcErrCh  <-chan error
	blocksSub *gossip.Subscription
}

// New assembles a Node from its already-constructed components; wiring
// decisions (which mempool/gossip backend, database path) live in
// cmd/chaind, not here.
func New(store *rawdb.ChainStore, pool txpool.Pool, broker *gossip.Broker, resolver *chainsync.Resolver, proposer *miner.Miner, rpcServer *rpc.Server) *Node {
	return &Node{
		Store:    store,
		Pool:     pool,
		Broker:   broker,
		Resolver: resolver,
		Proposer: proposer,
		RPC:      rpcServer,
	}
}

// Start brings up the proposer loop and the RPC facade. The gossip backend
// is started lazily on first publish/subscribe, mirroring Broker.ensureStarted.
func (n *Node) Start(ctx context.Context) error {
	nodeLog.Info("starting node", "head", n.headDescription())
	if err := n.Proposer.Start(ctx); err != nil {
		return err
	}
	n.rpcErrCh = n.RPC.Start()

	sub, err := n.Broker.Subscribe("blocks", 64)
	if err != nil {
		return err
	}
	n.blocksSub = sub
	go n.runBlockImportLoop(sub)
	return nil
}

// runBlockImportLoop feeds every block announcement seen on the "blocks"
// topic through the resolver, the data flow spec.md §4 describes as "Peer
// blocks → Chain Sync → Storage + Gossip". Announcements for blocks this
// node already has (including its own just-produced blocks, since the
// in-process backend fans a publish back to every subscriber) are rejected
// by Resolver.Import itself and never reach storage twice: as duplicates,
// or, with signature validation on, by the signature gate, since an
// announcement carries no proposer.
func (n *Node) runBlockImportLoop(sub *gossip.Subscription) {
	for {
		msg, ok := sub.Get()
		if !ok {
			return
		}
		announcement, err := decodeBlockAnnouncement(msg)
		if err != nil {
			nodeLog.Warn("dropping malformed block announcement", "err", err)
			continue
		}
		block := &types.Block{
			Height:     announcement.Height,
			Hash:       announcement.Hash,
			ParentHash: announcement.ParentHash,
			Timestamp:  announcement.Timestamp,
			TxCount:    announcement.TxCount,
		}
		if _, err := n.Resolver.Import(block, nil); err != nil {
			nodeLog.Error("block import from gossip failed", "height", block.Height, "err", err)
		}
	}
}

// decodeBlockAnnouncement normalizes a gossip message into a
// BlockAnnouncement regardless of whether it arrived as the original Go
// struct (in-process backend) or as a JSON-decoded map (broadcast backend).
func decodeBlockAnnouncement(msg any) (types.BlockAnnouncement, error) {
	if a, ok := msg.(types.BlockAnnouncement); ok {
		return a, nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return types.BlockAnnouncement{}, err
	}
	var a types.BlockAnnouncement
	if err := json.Unmarshal(data, &a); err != nil {
		return types.BlockAnnouncement{}, err
	}
	return a, nil
}

// Stop shuts every component down concurrently, collecting the first error
// encountered from each independent shutdown path.
func (n *Node) Stop(ctx context.Context) error {
	nodeLog.Info("stopping node")
	if n.blocksSub != nil {
		n.blocksSub.Close()
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n.Proposer.Stop()
		return nil
	})
	g.Go(func() error {
		return n.RPC.Stop(gctx)
	})
	g.Go(func() error {
		return n.Broker.Shutdown()
	})
	g.Go(func() error {
		return n.Store.Close()
	})

	err := g.Wait()

	select {
	case rpcErr := <-n.rpcErrCh:
		if rpcErr != nil && err == nil {
			err = rpcErr
		}
	case <-time.After(time.Second):
	}
	return err
}

func (n *Node) headDescription() string {
	head, err := n.Store.GetHead()
	if err != nil {
		return "unknown (storage error)"
	}
	if head == nil {
		return "genesis pending"
	}
	return head.Hash
}
