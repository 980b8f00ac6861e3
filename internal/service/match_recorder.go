package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/cache"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MatchRecorder persists match history, player stats and the leaderboard.
type MatchRecorder struct {
	matches     repository.MatchRepo
	players     repository.PlayerRepo
	leaderboard cache.LeaderboardCache
	log         *zap.Logger
}

// NewMatchRecorder creates a new match recorder
func NewMatchRecorder(
	matches repository.MatchRepo,
	players repository.PlayerRepo,
	leaderboard cache.LeaderboardCache,
	log *zap.Logger,
) *MatchRecorder {
	return &MatchRecorder{
		matches:     matches,
		players:     players,
		leaderboard: leaderboard,
		log:         log,
	}
}

// CreateMatch opens a match record for the room's current participants.
func (r *MatchRecorder) CreateMatch(ctx context.Context, room *model.Room, startedAt time.Time) (string, error) {
	match := &model.Match{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		GameType:  room.GameType,
		Players:   room.ParticipantIDs(),
		Rounds:    []model.RoundRecord{},
		StartedAt: startedAt,
	}
	if err := r.matches.Create(ctx, match); err != nil {
		return "", fmt.Errorf("create match: %w", err)
	}
	return match.ID, nil
}

// AppendRound records one completed round.
func (r *MatchRecorder) AppendRound(ctx context.Context, matchID string, round model.RoundRecord) error {
	if err := r.matches.AppendRound(ctx, matchID, round); err != nil {
		return fmt.Errorf("append round to match %s: %w", matchID, err)
	}
	return nil
}

// FinalizeMatch closes the match and applies its outcome to player stats.
func (r *MatchRecorder) FinalizeMatch(ctx context.Context, room *model.Room, result model.MatchResult) error {
	if err := r.matches.Finalize(ctx, room.MatchID, result); err != nil {
		return fmt.Errorf("finalize match %s: %w", room.MatchID, err)
	}
	return r.IncrementPlayerStats(ctx, room.GameType, result)
}

// IncrementPlayerStats bumps every ranked player's counters and the
// winner's leaderboard entry. All players are attempted even if one fails.
func (r *MatchRecorder) IncrementPlayerStats(ctx context.Context, gameType model.GameType, result model.MatchResult) error {
	var errs []error
	for _, st := range result.Standings {
		delta := model.StatsDelta{GamesPlayed: 1, Points: st.Score}
		if st.PlayerID == result.WinnerID {
			delta.Wins = 1
		}
		if err := r.players.IncrementStats(ctx, st.PlayerID, delta); err != nil {
			errs = append(errs, fmt.Errorf("stats for %s: %w", st.PlayerID, err))
		}
	}
	if result.WinnerID != "" {
		if err := r.leaderboard.AddScore(ctx, gameType, result.WinnerID, 1); err != nil {
			errs = append(errs, fmt.Errorf("leaderboard: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		r.log.Warn("player stats partially applied", zap.Error(err))
		return err
	}
	return nil
}
