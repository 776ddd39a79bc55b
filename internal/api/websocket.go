package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/indicator-core/internal/auth"
	"github.com/nerrad567/indicator-core/internal/bridges/presentation"
	"github.com/nerrad567/indicator-core/internal/infrastructure/config"
	"github.com/nerrad567/indicator-core/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePress       = "press"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// Event channels.
const (
	// ChannelRender carries presentation render commands. Every client is
	// subscribed to it on connect.
	ChannelRender = "render"

	// ChannelSnapshot carries the full state, sent once on connect.
	ChannelSnapshot = "snapshot"
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// outboundMessage is WSMessage with an arbitrary payload.
type outboundMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// WSPressPayload is the payload for press messages.
type WSPressPayload struct {
	Widget string `json:"widget"`
}

// RenderEvent is the JSON form of a presentation.RenderCommand.
type RenderEvent struct {
	Kind   presentation.CommandKind `json:"kind"`
	Mode   string                   `json:"mode,omitempty"`
	On     *bool                    `json:"on,omitempty"`
	Level  *int                     `json:"level,omitempty"`
	Status string                   `json:"status,omitempty"`
}

func newRenderEvent(cmd presentation.RenderCommand) RenderEvent {
	ev := RenderEvent{Kind: cmd.Kind}
	switch cmd.Kind {
	case presentation.KindMode:
		on := cmd.On
		ev.Mode = cmd.Mode.String()
		ev.On = &on
	case presentation.KindWater:
		level := cmd.Level
		ev.Level = &level
		ev.Status = string(cmd.Status)
	}
	return ev
}

// TouchSink accepts widget presses. *presentation.Bridge implements it.
type TouchSink interface {
	Submit(ev presentation.TouchEvent) error
}

// Hub manages WebSocket connections. It is the panel's presentation.Display:
// each render command is broadcast to connected panels, and presses they
// send are queued on the touch sink.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex

	sink     TouchSink
	snapshot func() any
	sinkMu   sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	id            string
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex

	subject string
	role    auth.Role
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// SetTouchSink sets where client presses are queued.
func (h *Hub) SetTouchSink(sink TouchSink) {
	h.sinkMu.Lock()
	h.sink = sink
	h.sinkMu.Unlock()
}

// SetSnapshot sets the function producing the state sent to new clients.
func (h *Hub) SetSnapshot(fn func() any) {
	h.sinkMu.Lock()
	h.snapshot = fn
	h.sinkMu.Unlock()
}

// Render implements presentation.Display. A hub with no clients draws
// nothing and never fails; a panel that connects later gets a snapshot.
func (h *Hub) Render(cmd presentation.RenderCommand) error {
	h.Broadcast(ChannelRender, newRenderEvent(cmd))
	return nil
}

// Run blocks until the context is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub and sends it the current snapshot.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "client", client.id, "role", string(client.role), "clients", h.ClientCount())

	h.sinkMu.RLock()
	snapshot := h.snapshot
	h.sinkMu.RUnlock()
	if snapshot != nil {
		client.sendEvent(ChannelSnapshot, snapshot())
	}
}

// Unregister removes a client from the hub.
// Only the goroutine that removes the client from the map closes its send
// channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "client", client.id, "clients", h.ClientCount())
}

// Broadcast sends an event to all clients subscribed to channel.
// The hub lock is released before per-client subscription checks.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(outboundMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.isSubscribed(channel) {
			client.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

func (h *Hub) submit(ev presentation.TouchEvent) error {
	h.sinkMu.RLock()
	sink := h.sink
	h.sinkMu.RUnlock()
	if sink == nil {
		return errors.New("touch input not available")
	}
	return sink.Submit(ev)
}

// handleWebSocket upgrades the connection. Authentication is via a
// single-use ticket query parameter obtained from POST /auth/ws-ticket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		id:            uuid.NewString(),
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelRender: {}},
		subject:       entry.subject,
		role:          entry.role,
	}

	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// wsTimings returns the keepalive ping interval and pong wait, defaulting
// unset values to 30s and 10s.
func wsTimings(cfg config.WebSocketConfig) (time.Duration, time.Duration) {
	ping := time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = 30 * time.Second
	}
	pong := time.Duration(cfg.PongTimeout) * time.Second
	if pong <= 0 {
		pong = 10 * time.Second
	}
	return ping, pong
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval, pongWait := wsTimings(cfg)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "client", c.id, "error", err)
			}
			return
		}
		// Any client message keeps the connection alive, even if the
		// browser does not answer protocol-level pings.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval, pongWait := wsTimings(cfg)
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypePress:
		c.handlePress(msg)
	case WSTypeSubscribe:
		c.handleSubscribe(msg, true)
	case WSTypeUnsubscribe:
		c.handleSubscribe(msg, false)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handlePress queues a widget press from the panel.
func (c *WSClient) handlePress(msg WSMessage) {
	if !auth.HasPermission(c.role, auth.PermModeOperate) {
		c.sendError(msg.ID, "insufficient permissions")
		return
	}

	var p WSPressPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Widget == "" {
		c.sendError(msg.ID, "invalid press payload")
		return
	}

	err := c.hub.submit(presentation.TouchEvent{Widget: p.Widget, Source: "ws"})
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"accepted": true,
		"widget":   p.Widget,
	})
}

// handleSubscribe adds or removes channels from the client's subscriptions.
func (c *WSClient) handleSubscribe(msg WSMessage, subscribe bool) {
	var sub WSSubscribePayload
	if err := json.Unmarshal(msg.Payload, &sub); err != nil {
		c.sendError(msg.ID, "invalid subscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if subscribe {
		key = "subscribed"
	}
	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

// trySend queues data for the client. A full buffer (slow client) or a
// closed channel (client gone during broadcast) drops the message.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}

// isSubscribed checks if the client is subscribed to a channel.
func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendEvent(channel string, payload any) {
	c.sendMessage(outboundMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	c.sendMessage(outboundMessage{Type: msgType, ID: id, Payload: payload})
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}

func (c *WSClient) sendMessage(msg outboundMessage) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}
