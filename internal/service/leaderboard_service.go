package service

import (
	"context"
	"fmt"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/cache"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/repository"
	"go.uber.org/zap"
)

const maxLeaderboardSize = 100

// LeaderboardService reads the per-game win leaderboard.
type LeaderboardService struct {
	leaderboard cache.LeaderboardCache
	players     repository.PlayerRepo
	log         *zap.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(leaderboard cache.LeaderboardCache, players repository.PlayerRepo, log *zap.Logger) *LeaderboardService {
	return &LeaderboardService{
		leaderboard: leaderboard,
		players:     players,
		log:         log,
	}
}

// Top returns the n best players of gameType with their display names.
func (s *LeaderboardService) Top(ctx context.Context, gameType model.GameType, n int) ([]cache.LeaderboardEntry, error) {
	if !gameType.Valid() {
		return nil, apperrors.New(apperrors.CodeRoomInvalidSettings, "Unknown game type")
	}
	if n <= 0 || n > maxLeaderboardSize {
		n = 10
	}
	entries, err := s.leaderboard.GetTop(ctx, gameType, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	for i := range entries {
		profile, err := s.players.GetByID(ctx, entries[i].PlayerID)
		if err != nil {
			s.log.Warn("leaderboard profile lookup failed", zap.String("player_id", entries[i].PlayerID), zap.Error(err))
			continue
		}
		if profile != nil {
			entries[i].DisplayName = profile.DisplayName
		}
	}
	return entries, nil
}
