package service

import (
	"context"
	"fmt"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/cache"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/registry"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/repository"
	"go.uber.org/zap"
)

// PlayerView is a player's own profile with live session details.
type PlayerView struct {
	model.PlayerIdentity
	Stats         model.PlayerStats        `json:"stats"`
	Ranks         map[model.GameType]int64 `json:"ranks"`
	CurrentRoomID string                   `json:"currentRoomId,omitempty"`
	Online        bool                     `json:"online"`
}

// PlayerService reads player profiles
type PlayerService struct {
	players     repository.PlayerRepo
	leaderboard cache.LeaderboardCache
	registry    *registry.Registry
	log         *zap.Logger
}

// NewPlayerService creates a new player service
func NewPlayerService(
	players repository.PlayerRepo,
	leaderboard cache.LeaderboardCache,
	reg *registry.Registry,
	log *zap.Logger,
) *PlayerService {
	return &PlayerService{
		players:     players,
		leaderboard: leaderboard,
		registry:    reg,
		log:         log,
	}
}

// Profile returns identity's stats, leaderboard ranks and the room the
// registry still binds it to, so a client can offer to rejoin.
func (s *PlayerService) Profile(ctx context.Context, identity model.PlayerIdentity) (*PlayerView, error) {
	profile, err := s.players.GetByID(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", identity.ID, err)
	}

	view := &PlayerView{
		PlayerIdentity: identity,
		Ranks:          make(map[model.GameType]int64),
	}
	if profile != nil {
		view.Stats = profile.Stats
	}
	for _, gameType := range []model.GameType{model.GameRoles, model.GameCards} {
		rank, err := s.leaderboard.GetRank(ctx, gameType, identity.ID)
		if err != nil {
			s.log.Warn("leaderboard rank unavailable",
				zap.String("player_id", identity.ID),
				zap.String("game_type", string(gameType)),
				zap.Error(err))
			continue
		}
		if rank > 0 {
			view.Ranks[gameType] = rank
		}
	}
	view.CurrentRoomID, _ = s.registry.CurrentRoom(identity.ID)
	_, view.Online = s.registry.Lookup(identity.ID)
	return view, nil
}
