package ws

import (
	"encoding/json"
	"sync"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/registry"
	"go.uber.org/zap"
)

const sendBuffer = 256

// Hub owns the live WebSocket connections, keyed by transport id. Players
// are resolved to their current transport through the registry on every
// delivery, so a message never reaches a superseded connection.
type Hub struct {
	registry *registry.Registry
	log      *zap.Logger

	mu    sync.RWMutex
	conns map[string]*Connection
}

// Connection represents a WebSocket connection
type Connection struct {
	ID       string // transport id
	PlayerID string
	Send     chan []byte
}

// NewConnection creates a connection with a buffered send queue.
func NewConnection(transportID, playerID string) *Connection {
	return &Connection{
		ID:       transportID,
		PlayerID: playerID,
		Send:     make(chan []byte, sendBuffer),
	}
}

// NewHub creates a new WebSocket hub
func NewHub(reg *registry.Registry, log *zap.Logger) *Hub {
	return &Hub{
		registry: reg,
		log:      log,
		conns:    make(map[string]*Connection),
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID] = conn
}

// Unregister removes a connection and closes its send queue. It reports
// whether the connection was still registered.
func (h *Hub) Unregister(transportID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[transportID]
	if !ok {
		return false
	}
	delete(h.conns, transportID)
	close(conn.Send)
	return true
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Deliver implements service.Broadcaster. Messages are encoded and queued
// before it returns, in the order given.
func (h *Hub) Deliver(msgs ...model.Outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, msg := range msgs {
		data, err := encode(msg.Type, msg.Payload)
		if err != nil {
			h.log.Error("failed to encode message",
				zap.String("type", msg.Type),
				zap.String("room_id", msg.RoomID),
				zap.Error(err))
			continue
		}
		for _, playerID := range msg.Recipients {
			transportID, ok := h.registry.Lookup(playerID)
			if !ok {
				continue
			}
			if conn, ok := h.conns[transportID]; ok {
				h.enqueue(conn, msg.Type, data)
			}
		}
	}
}

// SendTo queues a message for one connection regardless of which transport
// the registry currently binds to its player.
func (h *Hub) SendTo(transportID, msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.log.Error("failed to encode message", zap.String("type", msgType), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conn, ok := h.conns[transportID]; ok {
		h.enqueue(conn, msgType, data)
	}
}

func (h *Hub) enqueue(conn *Connection, msgType string, data []byte) {
	select {
	case conn.Send <- data:
	default:
		// Drop message if buffer full
		h.log.Warn("send buffer full, dropping message",
			zap.String("player_id", conn.PlayerID),
			zap.String("type", msgType))
	}
}

func encode(msgType string, payload any) ([]byte, error) {
	env := model.Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
