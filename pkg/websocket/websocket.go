package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/models"
)

// Hub fans lifecycle events out to subscribed WebSocket clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests from the upgrade handler
	register chan *Client

	// Unregister requests from client read pumps
	unregister chan *Client

	// Channel subscriptions
	subscriptions map[string]map[*Client]bool

	// Closed when Run returns
	done chan struct{}

	mu sync.RWMutex
}

// Client represents a WebSocket client
type Client struct {
	hub *Hub

	// WebSocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// Client ID
	id string

	// Subscriptions, guarded by the hub mutex
	subscriptions map[string]bool
}

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
	ID        string      `json:"id,omitempty"`
}

// SubscriptionRequest represents a client request
type SubscriptionRequest struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// TradeUpdate is the payload of a trade_update message
type TradeUpdate struct {
	Event          lifecycle.EventType `json:"event"`
	Trade          models.TradeDTO     `json:"trade"`
	PreviousStatus models.TradeStatus  `json:"previous_status,omitempty"`
}

// CounterpartyUpdate is the payload of a counterparty_update message
type CounterpartyUpdate struct {
	Event          lifecycle.EventType       `json:"event"`
	Counterparty   models.CounterpartyDTO    `json:"counterparty"`
	PreviousStatus models.CounterpartyStatus `json:"previous_status,omitempty"`
}

// Message types
const (
	MessageTypeWelcome            = "welcome"
	MessageTypeSubscribe          = "subscribe"
	MessageTypeSubscribed         = "subscribed"
	MessageTypeUnsubscribe        = "unsubscribe"
	MessageTypeUnsubscribed       = "unsubscribed"
	MessageTypePing               = "ping"
	MessageTypePong               = "pong"
	MessageTypeError              = "error"
	MessageTypeTradeUpdate        = "trade_update"
	MessageTypeCounterpartyUpdate = "counterparty_update"
)

// Channel types. Trades of one counterparty are published on "trades.<counterpartyId>".
const (
	ChannelTrades         = "trades"
	ChannelCounterparties = "counterparties"
)

// WebSocket connection settings
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origins are already filtered by the CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscriptions: make(map[string]map[*Client]bool),
		done:          make(chan struct{}),
	}
}

// CounterpartyChannel names the trade channel of one counterparty
func CounterpartyChannel(counterpartyID uint) string {
	return fmt.Sprintf("%s.%d", ChannelTrades, counterpartyID)
}

// Run serves register and unregister requests until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	logrus.WithField("client_id", client.id).Info("WebSocket client registered")

	go client.writePump()
	go client.readPump()

	client.enqueue(Message{
		Type:      MessageTypeWelcome,
		Data:      map[string]interface{}{"client_id": client.id},
		Timestamp: time.Now().Unix(),
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.removeLocked(client) {
		logrus.WithField("client_id", client.id).Info("WebSocket client unregistered")
	}
}

// removeLocked drops client and closes its send channel. Callers hold h.mu.
func (h *Hub) removeLocked(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)

	for channel := range client.subscriptions {
		if clients, exists := h.subscriptions[channel]; exists {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.subscriptions, channel)
			}
		}
	}
	return true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.removeLocked(client)
	}
}

// Subscribe adds client to channel
func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	if h.subscriptions[channel] == nil {
		h.subscriptions[channel] = make(map[*Client]bool)
	}
	h.subscriptions[channel][client] = true
	client.subscriptions[channel] = true

	logrus.WithFields(logrus.Fields{"client_id": client.id, "channel": channel}).Debug("Client subscribed")
}

// Unsubscribe removes client from channel
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.subscriptions[channel]; exists {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.subscriptions, channel)
		}
	}
	delete(client.subscriptions, channel)

	logrus.WithFields(logrus.Fields{"client_id": client.id, "channel": channel}).Debug("Client unsubscribed")
}

// Observe publishes trade and counterparty events to their channels
func (h *Hub) Observe(_ context.Context, event lifecycle.Event) {
	switch {
	case event.Type == lifecycle.EventTradeRejected:
		return

	case event.Type.IsTrade():
		update := TradeUpdate{
			Event:          event.Type,
			Trade:          models.NewTradeDTO(event.Trade),
			PreviousStatus: event.PreviousTradeStatus,
		}
		channels := []string{ChannelTrades, CounterpartyChannel(event.Trade.CounterpartyID)}
		if event.PreviousTrade != nil && event.PreviousTrade.CounterpartyID != event.Trade.CounterpartyID {
			channels = append(channels, CounterpartyChannel(event.PreviousTrade.CounterpartyID))
		}
		for _, channel := range channels {
			h.Broadcast(channel, MessageTypeTradeUpdate, update)
		}

	default:
		h.Broadcast(ChannelCounterparties, MessageTypeCounterpartyUpdate, CounterpartyUpdate{
			Event:          event.Type,
			Counterparty:   models.NewCounterpartyDTO(event.Counterparty),
			PreviousStatus: event.PreviousCounterpartyStatus,
		})
	}
}

// Broadcast sends a message to every subscriber of channel. Subscribers whose
// buffers are full are disconnected.
func (h *Hub) Broadcast(channel, messageType string, data interface{}) {
	message := Message{
		Type:      messageType,
		Channel:   channel,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	payload, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).WithField("channel", channel).Error("Failed to encode WebSocket message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.subscriptions[channel] {
		select {
		case client.send <- payload:
		default:
			logrus.WithField("client_id", client.id).Warn("WebSocket client too slow, disconnecting")
			h.removeLocked(client)
		}
	}
}

// HandleWebSocket upgrades the request and registers the client
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		id:            xid.New().String(),
		subscriptions: make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
	}
}

// GetStats returns WebSocket statistics
func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	channels := make(map[string]int, len(h.subscriptions))
	for channel, clients := range h.subscriptions {
		channels[channel] = len(clients)
	}
	return map[string]interface{}{
		"total_clients": len(h.clients),
		"subscriptions": channels,
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("client_id", c.id).Warn("WebSocket read failed")
			}
			return
		}
		c.handleMessage(message)
	}
}

// writePump handles writing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleMessage(message []byte) {
	var req SubscriptionRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.sendError("Invalid message format")
		return
	}

	switch req.Type {
	case MessageTypeSubscribe:
		if !validChannel(req.Channel) {
			c.sendError("Invalid channel")
			return
		}
		c.hub.Subscribe(c, req.Channel)
		c.reply(MessageTypeSubscribed, req.Channel)
	case MessageTypeUnsubscribe:
		c.hub.Unsubscribe(c, req.Channel)
		c.reply(MessageTypeUnsubscribed, req.Channel)
	case MessageTypePing:
		c.reply(MessageTypePong, "")
	case MessageTypePong:
	default:
		c.sendError("Unknown message type")
	}
}

func validChannel(channel string) bool {
	switch channel {
	case ChannelTrades, ChannelCounterparties:
		return true
	}
	id, ok := strings.CutPrefix(channel, ChannelTrades+".")
	if !ok {
		return false
	}
	n, err := strconv.ParseUint(id, 10, 64)
	return err == nil && n > 0
}

func (c *Client) reply(messageType, channel string) {
	c.enqueue(Message{
		Type:      messageType,
		Channel:   channel,
		Timestamp: time.Now().Unix(),
	})
}

func (c *Client) sendError(message string) {
	c.enqueue(Message{
		Type:      MessageTypeError,
		Data:      map[string]string{"error": message},
		Timestamp: time.Now().Unix(),
	})
}

// enqueue queues a direct reply, dropping it if the client is gone or backed up
func (c *Client) enqueue(message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
