package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"MeanRev/internal/domain/models"
	"MeanRev/internal/usecase"
	applogger "MeanRev/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = 54 * time.Second
	wsSendBufferSize = 64
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClient is one connected frontend.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts pipeline topic messages to all connected clients and
// routes inbound commands back into the pipeline.
type Hub struct {
	pipeline *usecase.Pipeline
	l        *applogger.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func NewHub(pipeline *usecase.Pipeline, l *applogger.Logger) *Hub {
	return &Hub{
		pipeline: pipeline,
		l:        l,
		clients:  make(map[*wsClient]struct{}),
	}
}

// RegisterRoutes mounts the stream endpoint.
func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Broadcast sends one topic message to every client. A client whose
// send buffer is full is dropped rather than allowed to stall the rest.
func (h *Hub) Broadcast(msg models.TopicMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.l.Error("marshal broadcast failed", applogger.Error(err))
		return
	}

	h.mu.RLock()
	var stale []*wsClient
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.l.Warn("slow websocket client dropped")
		h.remove(c)
	}
}

// Clients returns the current connection count.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the connection and runs the read/write pumps.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBufferSize)}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.l.Info("websocket client connected", applogger.Int("clients", h.Clients()))

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// command is the inbound client message schema.
type command struct {
	Type string `json:"type"`
	Pair string `json:"pair"`
}

func (h *Hub) readPump(c *wsClient) {
	defer h.remove(c)
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd command
		if err := json.Unmarshal(b, &cmd); err != nil {
			continue
		}
		if cmd.Type == "change_pair" && len(cmd.Pair) == 6 {
			h.l.Info("pair change requested", applogger.String("pair", cmd.Pair))
			h.pipeline.SwitchPair(cmd.Pair)
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}
