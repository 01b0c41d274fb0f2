package controller

import (
	"net/http"

	ws "github.com/dmills/storefront-backend/internal/websocket"
	"github.com/dmills/storefront-backend/internal/middleware"
	"github.com/dmills/storefront-backend/pkg/util"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Invalidation messages carry only product slugs, nothing
		// sensitive, so any origin may subscribe.
		return true
	},
}

type InvalidationController struct {
	hub *ws.Hub
}

func NewInvalidationController(hub *ws.Hub) *InvalidationController {
	return &InvalidationController{
		hub: hub,
	}
}

// Connect upgrades the request to a WebSocket subscription for product
// invalidation events
// GET /api/v1/ws/invalidations
func (ctrl *InvalidationController) Connect(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err, nil)
		return
	}

	client := &ws.Client{
		Hub:  ctrl.hub,
		Conn: &ws.Conn{Conn: conn},
		ID:   util.GenerateSessionToken(),
		Send: make(chan []byte, 256),
	}

	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	log.Info("WebSocket connection established", map[string]interface{}{
		"client_id": client.ID,
	})
}
