package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/baristaq/baristaq/internal/services"
)

// WSHandler upgrades UI connections and hands them to the hub.
type WSHandler struct {
	manager  *services.ConnectionManager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWSHandler creates the websocket handler. The barista UI is served
// from the same host, so cross-origin upgrades are allowed.
func NewWSHandler(manager *services.ConnectionManager, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve upgrades the connection and registers it for snapshots.
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.manager.Register(conn)
}
