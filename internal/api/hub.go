package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"visra.app/studio/internal/core"
	"visra.app/studio/pkg/logger"
	"visra.app/studio/pkg/metrics"
)

const (
	clientBufferSize = 256
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = 30 * time.Second
	maxReadSize      = 4 * 1024
)

// Hub fans conversation events out to WebSocket clients. Broadcast never
// blocks: a client whose buffer is full is disconnected.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	latest   map[core.EventKind][]byte
	upgrader websocket.Upgrader
	log      *logger.Logger
}

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	doneOnce sync.Once
}

func NewHub(allowedOrigins []string, log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		latest:  make(map[core.EventKind][]byte),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log.Named("hub"),
	}
}

// Broadcast is registered as a conversation listener. The most recent state
// and sessions events are replayed to clients that connect later.
func (h *Hub) Broadcast(ev core.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to marshal event", zap.String("kind", string(ev.Kind)), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if ev.Kind != core.EventNotice {
		h.latest[ev.Kind] = data
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("event client too slow, disconnecting")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams events until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	for _, kind := range []core.EventKind{core.EventSessions, core.EventState} {
		if data, ok := h.latest[kind]; ok {
			c.send <- data
		}
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.EventClients.Inc()
	h.log.Info("event client connected", zap.Int("clients", count))

	go c.writePump()
	c.readPump()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	metrics.EventClients.Dec()
	c.closeSend()
}

func (c *client) closeSend() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.hub.log.Debug("event write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for the client going away; clients act through the
// HTTP routes.
func (c *client) readPump() {
	defer func() {
		c.hub.mu.Lock()
		c.hub.removeLocked(c)
		count := len(c.hub.clients)
		c.hub.mu.Unlock()
		c.hub.log.Info("event client disconnected", zap.Int("clients", count))
	}()

	c.conn.SetReadLimit(maxReadSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("event read error", zap.Error(err))
			}
			return
		}
	}
}
