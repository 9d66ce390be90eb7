package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// sendBuffer is the per-client queue of outbound messages.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is header-authenticated and carries no cookies.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient is one websocket subscriber to a single game's event stream.
type wsClient struct {
	hub    *Hub
	gameID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks websocket watchers per game and fans broadcast messages out to
// them. Clients that cannot keep up are dropped rather than buffered without
// bound.
type Hub struct {
	log slog.Logger

	mu       sync.RWMutex
	watchers map[string]map[*wsClient]struct{}
}

// NewHub creates an empty hub.
func NewHub(log slog.Logger) *Hub {
	return &Hub{
		log:      log,
		watchers: make(map[string]map[*wsClient]struct{}),
	}
}

// Broadcast sends a message to every watcher of the game.
func (h *Hub) Broadcast(gameID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.watchers[gameID] {
		select {
		case c.send <- message:
		default:
			// The write pump closes the connection when send closes.
			h.log.Warnf("Dropping slow watcher of game %s", gameID)
			go h.remove(c)
		}
	}
}

// WatcherCount returns the number of active watchers of the game.
func (h *Hub) WatcherCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[gameID])
}

// ServeWS upgrades the request and subscribes the connection to the game's
// event stream until the peer disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, gameID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("Failed to upgrade watcher of game %s: %v", gameID, err)
		return
	}

	c := &wsClient{
		hub:    h,
		gameID: gameID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	h.add(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.watchers[c.gameID] == nil {
		h.watchers[c.gameID] = make(map[*wsClient]struct{})
	}
	h.watchers[c.gameID][c] = struct{}{}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	if set, ok := h.watchers[c.gameID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.watchers, c.gameID)
			}
		}
	}
	h.mu.Unlock()
}

// Close disconnects every watcher. Used during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for gameID, set := range h.watchers {
		for c := range set {
			close(c.send)
		}
		delete(h.watchers, gameID)
	}
}

// readPump discards inbound frames; the stream is one-way. It exists to
// process control messages and detect disconnects.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards queued messages and keeps the connection alive with
// pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
