package events

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var ErrHubFull = errors.New("websocket broadcast buffer full")

// subscribeMessage is the only message clients send: it replaces the set
// of projects the connection follows. An empty set follows everything.
type subscribeMessage struct {
	Type       string   `json:"type"`
	ProjectIDs []string `json:"project_ids"`
}

type wsClient struct {
	id       string
	conn     *websocket.Conn
	send     chan Event
	mu       sync.Mutex
	projects map[string]bool
}

func (c *wsClient) follows(projectID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.projects) == 0 {
		return true
	}
	return c.projects[projectID]
}

func (c *wsClient) subscribe(projectIDs []string) {
	set := make(map[string]bool, len(projectIDs))
	for _, id := range projectIDs {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	c.mu.Lock()
	c.projects = set
	c.mu.Unlock()
}

// Hub streams events to websocket clients. It is both an http.Handler for
// the /ws endpoint and an event Sink.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan Event
	register   chan *wsClient
	unregister chan *wsClient
	stop       chan struct{}
	stopOnce   sync.Once
	count      atomic.Int64
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger, allowedOrigins []string, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	h := &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan Event, bufferSize),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		stop:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
	go h.run()
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func (h *Hub) Name() string { return "websocket" }

// Deliver hands e to the hub without blocking.
func (h *Hub) Deliver(_ context.Context, e Event) error {
	select {
	case <-h.stop:
		return nil
	default:
	}
	select {
	case h.broadcast <- e:
		return nil
	default:
		return ErrHubFull
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// ServeHTTP upgrades the request. Clients may preselect projects with
// repeated ?project_id= query parameters.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket connection", zap.Error(err))
		return
	}

	c := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Event, 64),
	}
	c.subscribe(r.URL.Query()["project_id"])

	select {
	case h.register <- c:
	case <-h.stop:
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg subscribeMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Websocket read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		if msg.Type == "subscribe" {
			c.subscribe(msg.ProjectIDs)
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
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

// run owns the client set; only it closes a client's send channel.
func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.setCount()
			h.logger.Debug("Websocket client registered", zap.String("client_id", c.id))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setCount()
			}

		case e := <-h.broadcast:
			for c := range h.clients {
				if e.ProjectID != "" && !c.follows(e.ProjectID) {
					continue
				}
				select {
				case c.send <- e:
				default:
					// slow consumer
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.setCount()

		case <-h.stop:
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.setCount()
			return
		}
	}
}

func (h *Hub) setCount() {
	n := int64(len(h.clients))
	h.count.Store(n)
	metrics.WebSocketClients.Set(float64(n))
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
}
