package collector

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/trace2pass/trace2pass/internal/report"
)

// WSMessage is one message sent to a connected triage dashboard.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub maintains the set of connected triage-feed clients and
// broadcasts Record create/update events to all of them. Unlike the
// teacher's per-agent hub, every client here subscribes to the same
// global feed — there is no per-caller partitioning in this domain.
type Hub struct {
	clients    map[*WSClient]struct{}
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan *WSMessage

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new triage-feed hub.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*WSClient]struct{}),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan *WSMessage, 256),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop. It blocks until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("collector: triage-feed client connected (total=%d)", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("collector: triage-feed client disconnected (total=%d)", n)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				client.Send(msg)
			}
			h.mu.RUnlock()
		}
	}
}

// Stop shuts the hub down, closing every connected client.
func (h *Hub) Stop() { h.cancel() }

// BroadcastRecord notifies every connected client that record changed,
// tagged with eventType (e.g. "report.submitted", "record.updated").
func (h *Hub) BroadcastRecord(eventType string, record report.Record) {
	select {
	case h.broadcast <- &WSMessage{Type: eventType, Payload: record}:
	default:
		log.Printf("collector: triage-feed broadcast buffer full, dropping %s", eventType)
	}
}

// ClientCount returns the number of connected triage-feed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// handleWebSocket upgrades a connection at /ws and registers it with
// the hub as a triage-feed subscriber.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("collector: websocket upgrade failed: %v", err)
		return
	}

	client := NewWSClient(s.hub, conn)
	s.hub.register <- client

	client.Send(&WSMessage{
		Type: "connected",
		Payload: map[string]any{
			"time": time.Now().UTC().Format(time.RFC3339),
		},
	})

	go client.writePump()
	go client.readPump()
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// WSClient is a single triage-feed websocket connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan *WSMessage

	mu     sync.Mutex
	closed bool
}

// NewWSClient creates a triage-feed client bound to conn.
func NewWSClient(hub *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:  hub,
		conn: conn,
		send: make(chan *WSMessage, sendBufferSize),
	}
}

// Send queues msg for delivery, dropping it if the client's buffer is
// full rather than blocking the hub's broadcast loop.
func (c *WSClient) Send(msg *WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Printf("collector: send buffer full for triage-feed client, dropping message")
	}
}

// Close closes the client's connection and send channel.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.conn.Close()
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {

				log.Printf("collector: triage-feed read error: %v", err)
			}
			return
		}
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("collector: triage-feed marshal error: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("collector: triage-feed write error: %v", err)
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
