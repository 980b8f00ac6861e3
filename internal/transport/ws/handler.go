package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/registry"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Resolver turns a presented token into a player identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (model.PlayerIdentity, error)
}

// Disconnector is told when a transport closes.
type Disconnector interface {
	Disconnect(ctx context.Context, playerID, transportID string)
}

// Handler handles WebSocket connections
type Handler struct {
	hub        *Hub
	auth       Resolver
	rooms      Disconnector
	registry   *registry.Registry
	dispatcher *Dispatcher
	log        *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, auth Resolver, rooms Disconnector, reg *registry.Registry, dispatcher *Dispatcher, log *zap.Logger) *Handler {
	return &Handler{
		hub:        hub,
		auth:       auth,
		rooms:      rooms,
		registry:   reg,
		dispatcher: dispatcher,
		log:        log,
	}
}

// ServeWS handles GET /v1/ws. The token is read from the token query
// parameter or a bearer Authorization header.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	player, err := h.auth.Resolve(r.Context(), token)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeUnauthorized {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h.log.Error("failed to resolve player", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("player_id", player.ID), zap.Error(err))
		return
	}

	conn := NewConnection(uuid.NewString(), player.ID)
	h.hub.Register(conn)
	previous, hadPrevious := h.registry.Lookup(player.ID)
	h.registry.Attach(player.ID, conn.ID)
	if hadPrevious && previous != conn.ID {
		// The newer connection wins; close the old one.
		h.hub.Unregister(previous)
	}

	h.log.Info("player connected",
		zap.String("player_id", player.ID),
		zap.String("transport_id", conn.ID))

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn, player)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection, player model.PlayerIdentity) {
	defer func() {
		h.hub.Unregister(conn.ID)
		h.rooms.Disconnect(context.Background(), player.ID, conn.ID)
		wsConn.Close()
		h.log.Info("player disconnected",
			zap.String("player_id", player.ID),
			zap.String("transport_id", conn.ID))
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", zap.String("player_id", player.ID), zap.Error(err))
			}
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			h.hub.SendTo(conn.ID, model.MsgError, model.ErrorPayload{
				Code:    string(apperrors.CodeInvalidPayload),
				Message: "Messages must be JSON envelopes with a type",
			})
			continue
		}
		if out := h.dispatcher.Dispatch(context.Background(), player, env); out != nil {
			h.hub.SendTo(conn.ID, out.Type, out.Payload)
		}
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
