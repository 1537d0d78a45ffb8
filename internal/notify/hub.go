// Package notify is the real-time delivery fabric: one WebSocket actor per
// connected agent for personal notifications (direct messages, job state
// changes, wallet/recovery events), plus a shared town-square broadcast
// group for the public chat feed. Adapted from the teacher pack's
// DAGStreamer hub (register/unregister/broadcast channels over
// gorilla/websocket), generalized from a single global broadcast group to
// one group per agent plus one shared group.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is the envelope written to every connected client.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

const townSquareGroup = "__town_square__"

// client is one live WebSocket actor: a buffered outbound queue drained by
// writePump, and a reference to the group (agent ID, or the town-square
// constant) it belongs to.
type client struct {
	conn  *websocket.Conn
	send  chan Event
	group string
}

// Hub fans notification events out to connected WebSocket clients, grouped
// by agent ID for personal delivery and by the town-square group for the
// public broadcast feed.
type Hub struct {
	mu       sync.RWMutex
	groups   map[string]map[*client]bool
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub builds a Hub. originCheck should validate the WebSocket upgrade's
// Origin header against the configured CORS allowlist; pass nil to allow
// any origin (development only).
func NewHub(logger *zap.Logger, originCheck func(r *http.Request) bool) *Hub {
	if originCheck == nil {
		originCheck = func(r *http.Request) bool { return true }
	}
	return &Hub{
		groups: make(map[string]map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originCheck,
		},
		logger: logger,
	}
}

// ServePersonal upgrades the connection and joins the agent's personal
// group, so subsequent Notify(agentID, ...) calls reach this socket.
func (h *Hub) ServePersonal(w http.ResponseWriter, r *http.Request, agentID string) error {
	return h.serve(w, r, agentID)
}

// ServeTownSquare upgrades the connection and joins the shared broadcast
// group fed by BroadcastTownSquare.
func (h *Hub) ServeTownSquare(w http.ResponseWriter, r *http.Request) error {
	return h.serve(w, r, townSquareGroup)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, group string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan Event, 64), group: group}
	h.mu.Lock()
	if h.groups[group] == nil {
		h.groups[group] = make(map[*client]bool)
	}
	h.groups[group][c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c, group)
	return nil
}

// writePump drains c.send to the socket until it is closed.
func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for event := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(event); err != nil {
			return
		}
	}
}

// readPump discards inbound frames (pings/close) until the socket dies,
// then removes the client from its group.
func (h *Hub) readPump(c *client, group string) {
	defer h.remove(c, group)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.groups[group]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.groups, group)
		}
	}
}

// Notify delivers an event to every socket in the agent's personal group.
// A non-blocking send: for a client whose buffer is full the event is
// dropped (the client stays connected) rather than stalling the notifier,
// since live delivery is best-effort — the durable record lives in
// internal/inbox.
func (h *Hub) Notify(agentID string, eventType string, data interface{}) {
	h.publish(agentID, eventType, data)
}

// BroadcastTownSquare delivers an event to every socket subscribed to the
// shared town-square group.
func (h *Hub) BroadcastTownSquare(eventType string, data interface{}) {
	h.publish(townSquareGroup, eventType, data)
}

func (h *Hub) publish(group, eventType string, data interface{}) {
	event := Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}

	h.mu.RLock()
	clients := h.groups[group]
	h.mu.RUnlock()

	for c := range clients {
		select {
		case c.send <- event:
		default:
			h.logger.Warn("notify: dropping event for slow client", zap.String("group", group), zap.String("type", eventType))
		}
	}
}

// ConnectionCount returns how many sockets are joined to a group, mostly
// useful for metrics and tests.
func (h *Hub) ConnectionCount(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// MarshalEventData is a convenience for handlers building a raw JSON
// payload to embed as Event.Data without double-encoding.
func MarshalEventData(v interface{}) (json.RawMessage, error) {
	return json.Marshal(v)
}
