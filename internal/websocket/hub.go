package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
)

// MessageTypeOptimizationStage tags route optimization progress pushed to admins
const MessageTypeOptimizationStage = "optimization_stage"

// Hub maintains active WebSocket connections and broadcasts messages
type Hub struct {
	// Registered clients (userID -> Client)
	clients map[string]*Client

	// Outbound messages addressed to one user
	broadcast chan *Message

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	logger *zap.Logger
	mu     sync.RWMutex
}

// Message represents a message to broadcast to a specific user
type Message struct {
	UserID string
	Data   interface{}
}

// Envelope is the JSON frame every pushed message is wrapped in
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client map until ctx is cancelled. On exit every client's send
// channel is closed so its pumps shut down.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for userID, client := range h.clients {
				close(client.send)
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			h.logger.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.UserID]; ok {
				// one connection per user, the newest wins
				close(old.send)
			}
			h.clients[client.UserID] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("websocket client connected",
				zap.String("user_id", client.UserID),
				zap.String("role", client.UserRole),
				zap.Int("clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.UserID]; ok && current == client {
				delete(h.clients, client.UserID)
				close(client.send)
				h.logger.Info("websocket client disconnected",
					zap.String("user_id", client.UserID),
					zap.String("role", client.UserRole),
					zap.Int("clients", len(h.clients)))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message.Data)
			if err != nil {
				h.logger.Error("failed to marshal message", zap.Error(err))
				continue
			}
			h.mu.Lock()
			if client, ok := h.clients[message.UserID]; ok {
				select {
				case client.send <- data:
				default:
					// Client buffer full, disconnect
					close(client.send)
					delete(h.clients, client.UserID)
					h.logger.Warn("client buffer full, disconnecting", zap.String("user_id", message.UserID))
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToUser queues a message for one user. The message is dropped when
// the queue is full or the hub has stopped.
func (h *Hub) BroadcastToUser(userID string, data interface{}) {
	select {
	case h.broadcast <- &Message{UserID: userID, Data: data}:
	case <-h.done:
	default:
		h.logger.Warn("broadcast queue full, dropping message", zap.String("user_id", userID))
	}
}

// BroadcastToRole sends a message to all users with a specific role
func (h *Hub) BroadcastToRole(role string, data interface{}) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID, client := range h.clients {
		if client.UserRole != role {
			continue
		}
		select {
		case client.send <- dataBytes:
		default:
			h.logger.Warn("client buffer full, skipping", zap.String("user_id", userID))
		}
	}
}

// PublishStage pushes an optimization transition to every connected admin
func (h *Hub) PublishStage(ev routing.StageEvent) {
	h.BroadcastToRole(models.RoleAdmin, Envelope{Type: MessageTypeOptimizationStage, Data: ev})
}

// StageChanged implements routing.StageObserver
func (h *Hub) StageChanged(_ context.Context, ev routing.StageEvent) {
	h.PublishStage(ev)
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsUserConnected checks if a user is currently connected
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
