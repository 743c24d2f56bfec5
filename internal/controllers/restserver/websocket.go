package restserver

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/Owen1B/fusionflow/internal/core"
	"github.com/Owen1B/fusionflow/internal/log"
	"github.com/Owen1B/fusionflow/internal/types"
	"github.com/Owen1B/fusionflow/pkg/config"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard may be served from another host on the ward network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHub tracks connected dashboard clients and fans the per-tick CSV
// snapshot and discrete event messages out to them.
type wsHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	core    *core.Core
	coreCfg config.CoreData
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan string
}

func newWsHub(c *core.Core, coreCfg config.CoreData) *wsHub {
	return &wsHub{
		clients: make(map[*wsClient]struct{}),
		core:    c,
		coreCfg: coreCfg,
	}
}

// ServeWs upgrades an HTTP request to a WebSocket dashboard session.
func (h *wsHub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan string, 16),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	log.Infof("websocket client connected from %v", conn.RemoteAddr())

	// Greet the client with the run parameters so the dashboard can
	// compute progress before the first broadcast arrives.
	snap := h.core.Snapshot()
	client.send <- fmt.Sprintf("INITIAL_PARAMS:%.1f,%.1f", snap.InitialWeightG, h.coreCfg.TargetEmptyG)

	go client.writePump(h)
	go client.readPump(h)
}

func (h *wsHub) remove(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

// broadcast queues a text message to every connected client, dropping it
// for clients that cannot keep up.
func (h *wsHub) broadcast(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
}

// BroadcastSnapshot sends the fixed-order CSV line for one tick.
func (h *wsHub) BroadcastSnapshot(s types.Snapshot) {
	h.broadcast(snapshotCSV(s))
}

// BroadcastEvent sends a discrete event as an ALERT: or EVENT: message.
// Calibration-started and invalid-command events are not broadcast.
func (h *wsHub) BroadcastEvent(ev types.Event) {
	switch ev.Kind {
	case types.EventInfusionAbnormalityDetected:
		h.broadcast("ALERT:INFUSION_ABNORMALITY_NO_DRIPS_DETECTED")
	case types.EventInfusionAbnormalityCleared:
		h.broadcast("ALERT:INFUSION_ABNORMALITY_CLEARED")
	case types.EventInfusionCompleted:
		h.broadcast("ALERT:INFUSION_COMPLETED")
	case types.EventWpdCalibrationCompleted:
		h.broadcast(fmt.Sprintf("EVENT:WPD_CALIBRATION_COMPLETED,WPD:%.4f,Drops:%d,DurationSec:%.1f",
			ev.WPD, ev.Drops, ev.DurationS))
	case types.EventWpdCalibrationTimedOutLowDrops:
		h.broadcast(fmt.Sprintf("EVENT:WPD_CALIBRATION_TIMEOUT_LOW_DROPS,Drops:%d", ev.Drops))
	case types.EventStateChanged:
		h.broadcast(fmt.Sprintf("EVENT:STATE_CHANGED,%s", ev.NewState.WireName()))
	case types.EventFastConvergenceEnded:
		h.broadcast("EVENT:FAST_CONVERGENCE_ENDED")
	}
}

// Close disconnects every client.
func (h *wsHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (c *wsClient) writePump(h *wsHub) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			h.remove(c)
			return
		}
	}
}

// readPump parses dashboard commands and forwards them to the core; the
// core's acknowledgement goes straight back to the issuing client.
func (c *wsClient) readPump(h *wsHub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		log.Infof("websocket client disconnected from %v", c.conn.RemoteAddr())
	}()

	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ack := h.core.OnCommand(string(payload))
		select {
		case c.send <- ack:
		default:
		}
	}
}
