// Package ws pushes live fleet events to connected dashboard clients over
// websockets: interpolated position samples, driver-connected notices, and
// upstream feed state changes.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fleetops/fleet-dashboard/internal/api/metrics"
	"github.com/fleetops/fleet-dashboard/internal/core/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	sendBuffer      = 256
	broadcastBuffer = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// --- Outbound message shapes ---

type positionSampleMsg struct {
	Type     string             `json:"type"`
	DriverID string             `json:"driverId"`
	Location domain.Coordinates `json:"location"`
	Final    bool               `json:"final"`
}

type driverConnectedMsg struct {
	Type   string        `json:"type"`
	Driver domain.Driver `json:"driver"`
}

type feedStatusMsg struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// Hub fans events out to every connected client. A client that cannot keep
// up is dropped rather than allowed to stall the rest.
type Hub struct {
	log zerolog.Logger

	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	// done releases registration sends that would otherwise block forever
	// once Run has returned and nobody receives on the channels above.
	done chan struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:        log.With().Str("component", "ws").Logger(),
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run owns the client set. Call it on its own goroutine; it exits when ctx
// is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			metrics.StreamClients.Set(0)
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.StreamClients.Inc()
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
				metrics.StreamClients.Dec()
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					c.close()
					metrics.StreamClients.Dec()
					h.log.Warn().Msg("dropped slow stream client")
				}
			}
		}
	}
}

// ServeWS upgrades the request and attaches the client to the hub.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- cl:
	case <-h.done:
		_ = conn.Close()
		return nil
	}

	go cl.writePump()
	go cl.readPump()
	return nil
}

// Sample implements ports.AnimationSink.
func (h *Hub) Sample(driverID string, at domain.Coordinates, final bool) {
	h.publish(positionSampleMsg{Type: "position_sample", DriverID: driverID, Location: at, Final: final})
}

// DriverConnected implements ports.FleetNotifier.
func (h *Hub) DriverConnected(driver domain.Driver) {
	h.publish(driverConnectedMsg{Type: "driver_connected", Driver: driver})
}

// FeedStatus tells clients whether the upstream feed is live.
func (h *Hub) FeedStatus(status string) {
	h.publish(feedStatusMsg{Type: "feed_status", Status: status})
}

// publish never blocks the caller; when the broadcast buffer is full the
// event is dropped. Stream clients converge on the next sample anyway.
func (h *Hub) publish(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal stream event")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
	}
}

// --- Per-connection plumbing ---

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) close() {
	close(c.send)
}

// readPump discards inbound frames; it exists to notice disconnects and
// answer pings.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
