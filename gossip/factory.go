package gossip

import (
	"fmt"
	"strings"
)

// NewBackend builds a Backend from the gossip_backend configuration value,
// mirroring create_backend in gossip/broker.py.
func NewBackend(kind string, broadcastURL string) (Backend, error) {
	switch strings.ToLower(kind) {
	case "", "memory", "inmemory", "local":
		return NewInProcessBackend(), nil
	case "broadcast", "external":
		if broadcastURL == "" {
			return nil, fmt.Errorf("gossip: broadcast backend requires gossip_broadcast_url")
		}
		return NewBroadcastBackend(broadcastURL), nil
	default:
		return nil, fmt.Errorf("gossip: unsupported gossip backend %q", kind)
	}
}
