package websocket

import (
	"encoding/json"
	"sync"

	"github.com/dmills/storefront-backend/pkg/logger"
)

// InvalidationMessage tells connected storefronts that a product's dependent
// views (listing cards, detail page, cart badges) should be refetched.
type InvalidationMessage struct {
	Type string `json:"type"`
	Slug string `json:"slug"`
}

// Client is a connected storefront session.
type Client struct {
	Hub  *Hub
	Conn *Conn
	ID   string
	Send chan []byte
}

// Hub manages connected clients and fans invalidation messages out to all of
// them. There is no per-client routing: every client gets every invalidation.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan []byte, 1024),
	}
}

// Run processes register, unregister and broadcast events. Call in a
// dedicated goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"client_id":     client.ID,
				"total_clients": total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("WebSocket client unregistered", map[string]interface{}{
				"client_id":     client.ID,
				"total_clients": total,
			})

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Send buffer is full, drop the client asynchronously
					go h.Unregister(client)
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"client_id": client.ID,
					})
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastInvalidation fans a product invalidation out to every connected
// client. Messages are dropped rather than blocking cart writes when the
// broadcast buffer is full.
func (h *Hub) BroadcastInvalidation(slug string) {
	data, err := json.Marshal(InvalidationMessage{
		Type: "product_invalidated",
		Slug: slug,
	})
	if err != nil {
		logger.Error("Failed to marshal invalidation message", err, nil)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		logger.Warn("Broadcast channel full, invalidation dropped", map[string]interface{}{
			"slug": slug,
		})
	}
}

// Register queues a client for registration
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister queues a client for removal
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
