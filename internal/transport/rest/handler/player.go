package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/cache"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/service"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/transport/rest/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Profiles reads player profiles.
type Profiles interface {
	Profile(ctx context.Context, identity model.PlayerIdentity) (*service.PlayerView, error)
}

// Leaderboards reads the per-game leaderboards.
type Leaderboards interface {
	Top(ctx context.Context, gameType model.GameType, n int) ([]cache.LeaderboardEntry, error)
}

// PlayerHandler handles player and leaderboard endpoints
type PlayerHandler struct {
	profiles     Profiles
	leaderboards Leaderboards
	log          *zap.Logger
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(profiles Profiles, leaderboards Leaderboards, log *zap.Logger) *PlayerHandler {
	return &PlayerHandler{
		profiles:     profiles,
		leaderboards: leaderboards,
		log:          log,
	}
}

// Me handles GET /v1/players/me
func (h *PlayerHandler) Me(w http.ResponseWriter, r *http.Request) {
	player, ok := middleware.GetPlayer(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "unauthorized")
		return
	}

	view, err := h.profiles.Profile(r.Context(), player)
	if err != nil {
		writeAppError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Leaderboard handles GET /v1/leaderboard/{gameType}?top=N
func (h *PlayerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	gameType := model.GameType(mux.Vars(r)["gameType"])

	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, apperrors.CodeInvalidPayload, "top must be a positive integer")
			return
		}
		top = n
	}

	entries, err := h.leaderboards.Top(r.Context(), gameType, top)
	if err != nil {
		writeAppError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gameType": gameType,
		"entries":  entries,
	})
}
