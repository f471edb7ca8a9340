// Package websocket streams log lines and pipeline results to operators
package websocket

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"avito-assist/internal/core/domain"
	"avito-assist/internal/core/ports"
)

// Ensure EventHub implements ResultSink
var _ ports.ResultSink = (*EventHub)(nil)

// Event kinds sent to clients
const (
	KindLog    = "log"
	KindResult = "result"
)

// Event is one frame line sent to a client
type Event struct {
	Kind   string                 `json:"kind"`
	Time   time.Time              `json:"time"`
	Line   string                 `json:"line,omitempty"`
	Source string                 `json:"source,omitempty"`
	Result *domain.PipelineResult `json:"result,omitempty"`
}

// EventHub fans log output and pipeline results out to every connected
// client. Producers never block: a full buffer drops the event.
type EventHub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	// secretKey guards ServeWS; empty disables the endpoint
	secretKey string
	upgrader  websocket.Upgrader
}

// Client represents a connected WebSocket client
type Client struct {
	hub  *EventHub
	conn *websocket.Conn
	send chan []byte
}

const (
	broadcastBufferSize = 256
	clientBufferSize    = 64

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// NewEventHub creates a new EventHub instance
func NewEventHub(secretKey string) *EventHub {
	return &EventHub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		secretKey:  secretKey,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Protected by the secret key
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run drives registration and broadcasting until ctx is cancelled
func (h *EventHub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("[EventHub] 🟢 Client connected", "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("[EventHub] 🔴 Client disconnected", "total", total)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				// Slow clients miss events instead of stalling the hub
				select {
				case client.send <- message:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Write implements io.Writer so the log handler can be teed into the hub.
// It always reports success.
func (h *EventHub) Write(p []byte) (int, error) {
	line := string(bytes.TrimRight(p, "\n\r"))
	h.enqueue(Event{Kind: KindLog, Time: time.Now().UTC(), Line: line})
	return len(p), nil
}

// Publish implements ports.ResultSink
func (h *EventHub) Publish(source string, result *domain.PipelineResult) {
	if result == nil {
		return
	}
	h.enqueue(Event{Kind: KindResult, Time: time.Now().UTC(), Source: source, Result: result})
}

func (h *EventHub) enqueue(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- msg:
	default:
	}
}

// ServeWS upgrades the request after checking ?secret_key=
// Route: /ws/events?secret_key=ADMIN_TOKEN
func (h *EventHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	queryKey := r.URL.Query().Get("secret_key")
	if h.secretKey == "" || subtle.ConstantTimeCompare([]byte(queryKey), []byte(h.secretKey)) != 1 {
		http.Error(w, "Unauthorized: Invalid or missing secret_key", http.StatusUnauthorized)
		slog.Warn("[EventHub] ⚠️ Unauthorized WebSocket attempt", "remote_addr", r.RemoteAddr)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("[EventHub] ❌ WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientBufferSize),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the current number of connected clients
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump drains the connection so pongs and close frames are handled
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("[EventHub] Read error", "error", err)
			}
			return
		}
	}
}

// writePump sends queued events, batching whatever is pending as
// newline-delimited JSON in one frame
func (c *Client) writePump() {
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

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
