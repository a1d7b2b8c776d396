package rpc

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/aitbc-network/chain-node/metrics"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var (
	metricWSConnections = metrics.NewRegisteredGauge("rpc_ws_connections", "open WebSocket stream connections")
	metricWSSendErrors  = metrics.NewRegisteredCounter("rpc_ws_send_errors_total", "WebSocket writes that failed and closed the stream")
)

// streamTopic upgrades the connection and forwards every message published
// on topic until the client disconnects or a write fails, then releases the
// subscription — the Go rendering of the original's async generator-based
// websocket endpoints in rpc/websocket.py.
func (s *Server) streamTopic(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		rpcLog.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub, err := s.broker.Subscribe(topic, 64)
	if err != nil {
		rpcLog.Error("websocket subscribe failed", "topic", topic, "err", err)
		return
	}
	defer sub.Close()

	metricWSConnections.Inc()
	defer metricWSConnections.Dec()

	// drain client reads to detect disconnects; this stream is server -> client only.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	for {
		msg, ok := sub.Get()
		if !ok {
			return
		}
		if err := conn.WriteJSON(msg); err != nil {
			metricWSSendErrors.Inc()
			return
		}
	}
}

func (s *Server) handleBlocksStream(w http.ResponseWriter, r *http.Request) {
	s.streamTopic(w, r, "blocks")
}

func (s *Server) handleTransactionsStream(w http.ResponseWriter, r *http.Request) {
	s.streamTopic(w, r, "transactions")
}
