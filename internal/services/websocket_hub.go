package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/observability"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Message types
const (
	WSTypeSyncChanged   = "sync_changed"
	WSTypeConflictFound = "conflict_found"
	WSTypeError         = "error"
	WSTypePing          = "ping"
	WSTypePong          = "pong"
)

// SyncChangedPayload tells an organization's devices to pull.
type SyncChangedPayload struct {
	Kinds       []string `json:"kinds"`
	SyncVersion int64    `json:"sync_version"`
}

// ConflictFoundPayload announces a conflict waiting for manual resolution.
type ConflictFoundPayload struct {
	LogID      string `json:"log_id"`
	EntityType string `json:"entity_type"`
	OfflineID  string `json:"offline_id"`
}

// OrgTopic is the topic every client of an organization is subscribed to.
func OrgTopic(orgID string) string {
	return "org:" + orgID
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	ID             string
	OrganizationID string
	UserID         string
	Topics         map[string]bool
	Conn           *websocket.Conn
	Send           chan []byte
	hub            *WebSocketHub
	mu             sync.Mutex
	closedOnce     sync.Once
	sendMu         sync.Mutex
	sendClosed     bool
}

// WebSocketHub fans sync notifications out to connected devices by topic
type WebSocketHub struct {
	clients    map[*WSClient]bool
	topics     map[string]map[*WSClient]bool // topic -> clients
	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan *broadcastMsg
	done       chan struct{}
	mu         sync.RWMutex
	logger     *observability.Logger
}

type broadcastMsg struct {
	topic   string
	message []byte
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*WSClient]bool),
		topics:     make(map[string]map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan *broadcastMsg, 256),
		done:       make(chan struct{}),
		logger:     observability.WithField("component", "websocket_hub"),
	}
}

// Run serves hub traffic until ctx is cancelled, then drops every client.
func (h *WebSocketHub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			for topic := range client.Topics {
				if h.topics[topic] == nil {
					h.topics[topic] = make(map[*WSClient]bool)
				}
				h.topics[topic][client] = true
			}
			h.mu.Unlock()
			h.logger.WithFields(map[string]interface{}{
				"client_id":       client.ID,
				"organization_id": client.OrganizationID,
			}).Debug("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			h.logger.WithField("client_id", client.ID).Debug("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.topics[msg.topic] {
				select {
				case client.Send <- msg.message:
				default:
					// Client buffer full, close connection
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *WebSocketHub) removeLocked(client *WSClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for topic := range client.Topics {
		if topicClients, ok := h.topics[topic]; ok {
			delete(topicClients, client)
			if len(topicClients) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	client.sendMu.Lock()
	client.sendClosed = true
	close(client.Send)
	client.sendMu.Unlock()
}

// Register adds a client to the hub. It reports false once the hub has stopped.
func (h *WebSocketHub) Register(client *WSClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *WebSocketHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues a message for a topic. Messages are dropped when the queue is full.
func (h *WebSocketHub) Publish(topic string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("Error marshaling WebSocket message: %v", err)
		return
	}

	select {
	case h.broadcast <- &broadcastMsg{topic: topic, message: data}:
	default:
		h.logger.WithField("topic", topic).Warn("WebSocket broadcast queue full, dropping message")
	}
}

// NotifySyncChanged tells an organization that rows of the given kinds changed.
func (h *WebSocketHub) NotifySyncChanged(orgID string, kinds []string, syncVersion int64) {
	h.Publish(OrgTopic(orgID), WSMessage{
		Type:    WSTypeSyncChanged,
		Payload: SyncChangedPayload{Kinds: kinds, SyncVersion: syncVersion},
	})
}

// NotifyConflict tells an organization a push produced a conflict.
func (h *WebSocketHub) NotifyConflict(orgID string, payload ConflictFoundPayload) {
	h.Publish(OrgTopic(orgID), WSMessage{
		Type:    WSTypeConflictFound,
		Payload: payload,
	})
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetTopicSubscriberCount returns the number of subscribers for a topic
func (h *WebSocketHub) GetTopicSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// NewClient creates a client for an organization member, subscribed to the organization topic
func (h *WebSocketHub) NewClient(id, orgID, userID string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ID:             id,
		OrganizationID: orgID,
		UserID:         userID,
		Topics:         map[string]bool{OrgTopic(orgID): true},
		Conn:           conn,
		Send:           make(chan []byte, 256),
		hub:            h,
	}
}

// Enqueue queues data for this client only. It reports false when the client
// is gone or its buffer is full.
func (c *WSClient) Enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Close closes the client connection
func (c *WSClient) Close() {
	c.closedOnce.Do(func() {
		c.hub.Unregister(c)
		c.Conn.Close()
	})
}

// WritePump pumps messages from the hub to the websocket connection
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.mu.Lock()
			err := c.Conn.WriteMessage(websocket.TextMessage, message)
			c.mu.Unlock()

			if err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump pumps messages from the websocket connection to onMessage
func (c *WSClient) ReadPump(onMessage func(client *WSClient, messageType int, data []byte)) {
	defer c.Close()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithField("client_id", c.ID).Warnf("WebSocket error: %v", err)
			}
			break
		}

		if onMessage != nil {
			onMessage(c, messageType, message)
		}
	}
}
