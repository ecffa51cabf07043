package api

import (
	"net/http"

	"github.com/Christianjames01/repo-sub000/internal/auth"
	ws "github.com/Christianjames01/repo-sub000/internal/websocket"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler handles the /api/v1/ws endpoint for reply notifications.
type WebSocketHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(hub *ws.Hub, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{hub: hub, logger: logger.Named("api.ws")}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The portal is only reachable through the authenticating reverse proxy.
		return true
	},
}

// Handle upgrades the connection and registers it for the administrator put
// in the context by auth.RequireAdmin.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.AdminFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.String("admin_id", admin.ID), zap.Error(err))
		return
	}

	client := h.hub.Register(admin.ID, conn)
	if client == nil {
		return
	}

	h.logger.Debug("connection established", zap.String("admin_id", admin.ID))

	go h.readLoop(admin.ID, client)
}

// readLoop reads until the connection closes, then unregisters the client.
func (h *WebSocketHandler) readLoop(adminID string, client *ws.Client) {
	conn := client.Conn()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Unregister(adminID, client)
}
