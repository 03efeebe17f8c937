// Package relay is the websocket hub peers sync profiles through. It keeps
// the latest valid document per profile id and fans new ones out.
package relay

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/way"
	log "github.com/sirupsen/logrus"

	"go-ripple/debug"
	"go-ripple/save"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 64
)

// URISync is the websocket endpoint peers connect to
const URISync = "/sync"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	addr string
}

// Hub tracks connected peers and the last document seen per profile
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	docs    map[string][]byte

	router *way.Router
	log    log.FieldLogger
}

// NewHub creates a hub with its routes installed
func NewHub() *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		docs:    make(map[string][]byte),
		log:     debug.Fields("relay"),
	}
	h.routes()
	return h
}

func (h *Hub) routes() {
	h.router = way.NewRouter()
	h.router.HandleFunc("GET", URISync, h.handleSync)
	h.router.HandleFunc("GET", "/profiles", h.handleList)
	h.router.HandleFunc("GET", "/profiles/:id", h.handleProfile)
}

// ServeHTTP implements http.Handler
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Clients returns how many peers are connected
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// accept verifies and records a document, then forwards it to every peer
// but the sender. Invalid or forged documents are dropped.
func (h *Hub) accept(raw []byte, from *client) error {
	p, err := save.Verify(raw)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.docs[p.ID] = append([]byte(nil), raw...)
	for c := range h.clients {
		if c != from {
			h.deliver(c, raw)
		}
	}
	return nil
}

// deliver queues without blocking; a peer too slow to drain is dropped.
// Caller holds h.mu.
func (h *Hub) deliver(c *client, raw []byte) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- raw:
	default:
		h.log.WithField("peer", c.addr).Warn("peer too slow, disconnecting")
		h.drop(c)
	}
}

// register adds a peer and queues every known document for it
func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	for _, raw := range h.docs {
		h.deliver(c, raw)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop closes a peer's queue once. Caller holds h.mu.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) handleSync(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), addr: r.RemoteAddr}
	h.log.WithField("peer", c.addr).Info("peer connected")

	go h.writePump(c)
	h.register(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		h.log.WithField("peer", c.addr).Info("peer disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.log.WithError(err).Warn("read failed")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if err := h.accept(raw, c); err != nil {
			h.log.WithField("peer", c.addr).WithError(err).Debug("rejected profile")
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
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

// handleList returns every stored profile as a JSON array, ordered by id
func (h *Hub) handleList(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	ids := make([]string, 0, len(h.docs))
	for id := range h.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		docs[i] = h.docs[id]
	}
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(docs)
}

func (h *Hub) handleProfile(w http.ResponseWriter, r *http.Request) {
	id := way.Param(r.Context(), "id")

	h.mu.Lock()
	raw, ok := h.docs[id]
	h.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}
