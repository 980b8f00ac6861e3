package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/service"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/transport/rest/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RoomOps is the part of the room service exposed over HTTP.
type RoomOps interface {
	Create(ctx context.Context, host model.PlayerIdentity, in service.CreateRoomInput) (*model.RoomView, error)
	QuickMatch(ctx context.Context, player model.PlayerIdentity, gameType model.GameType) (*model.RoomView, error)
	Get(ctx context.Context, roomID string) (*model.RoomView, error)
}

// RoomHandler handles room endpoints
type RoomHandler struct {
	rooms RoomOps
	log   *zap.Logger
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(rooms RoomOps, log *zap.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, log: log}
}

// QuickMatchRequest is the request body for quick match
type QuickMatchRequest struct {
	GameType model.GameType `json:"gameType"`
}

// Create handles POST /v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	player, ok := middleware.GetPlayer(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "unauthorized")
		return
	}

	var req service.CreateRoomInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.CodeInvalidPayload, "invalid request body")
		return
	}

	room, err := h.rooms.Create(r.Context(), player, req)
	if err != nil {
		writeAppError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// QuickMatch handles POST /v1/rooms/quick-match
func (h *RoomHandler) QuickMatch(w http.ResponseWriter, r *http.Request) {
	player, ok := middleware.GetPlayer(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "unauthorized")
		return
	}

	var req QuickMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.CodeInvalidPayload, "invalid request body")
		return
	}

	room, err := h.rooms.QuickMatch(r.Context(), player, req.GameType)
	if err != nil {
		writeAppError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Get handles GET /v1/rooms/{roomId}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	room, err := h.rooms.Get(r.Context(), roomID)
	if err != nil {
		writeAppError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}
