// Package websocket keeps administrators' live connections and pushes
// notification events to them.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Christianjames01/repo-sub000/internal/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client wraps a WebSocket connection.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

func (c *Client) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub manages active WebSocket connections per administrator.
// It supports multiple connections per administrator (e.g., multiple tabs).
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]map[*Client]struct{} // adminID -> set of clients
	maxPerAdmin int
	logger      *zap.Logger
}

// NewHub creates a new Hub with a per-administrator connection limit.
func NewHub(maxPerAdmin int, logger *zap.Logger) *Hub {
	if maxPerAdmin <= 0 {
		maxPerAdmin = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:     make(map[string]map[*Client]struct{}),
		maxPerAdmin: maxPerAdmin,
		logger:      logger.Named("websocket"),
	}
}

// Register adds a WebSocket connection for the given administrator.
// If the limit is exceeded, the new connection is closed and nil is returned.
func (h *Hub) Register(adminID string, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	adminClients, ok := h.clients[adminID]
	if !ok {
		adminClients = make(map[*Client]struct{})
		h.clients[adminID] = adminClients
	}

	if len(adminClients) >= h.maxPerAdmin {
		h.logger.Warn("too many connections, closing new connection",
			zap.String("admin_id", adminID), zap.Int("max", h.maxPerAdmin))
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections for this administrator"),
			time.Time{},
		)
		_ = conn.Close()
		return nil
	}

	client := &Client{conn: conn}
	adminClients[client] = struct{}{}
	return client
}

// Unregister removes a client for the given administrator and closes the connection.
func (h *Hub) Unregister(adminID string, client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if adminClients, ok := h.clients[adminID]; ok {
		delete(adminClients, client)
		if len(adminClients) == 0 {
			delete(h.clients, adminID)
		}
	}

	_ = client.conn.Close()
}

// Send broadcasts a message to all active clients of the administrator.
func (h *Hub) Send(adminID string, msg []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients[adminID]))
	for c := range h.clients[adminID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(msg); err != nil {
			h.logger.Debug("failed to write message, dropping connection",
				zap.String("admin_id", adminID), zap.Error(err))
			go h.Unregister(adminID, client)
		}
	}
}

// ActiveConnections returns the number of active connections of an administrator.
func (h *Hub) ActiveConnections(adminID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[adminID])
}

// NotificationEvent is pushed when a reply notification is created.
type NotificationEvent struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification"`
	Reply        models.ReplySummary  `json:"reply"`
}

// PublishNotification sends the notification to its administrator. Root
// notifications without a recipient are not pushed.
func (h *Hub) PublishNotification(n *models.Notification, reply models.ReplySummary) {
	if n == nil || n.AdminID == "" {
		return
	}

	msg, err := json.Marshal(NotificationEvent{Type: "email_reply", Notification: n, Reply: reply})
	if err != nil {
		h.logger.Error("failed to encode notification event", zap.Error(err))
		return
	}

	h.Send(n.AdminID, msg)
}
