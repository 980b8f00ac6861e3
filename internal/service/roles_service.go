package service

import (
	"context"
	"sync"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/game/roles"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const timerNextRound = "next_round"

// RoundStarted is the body of round_started.
type RoundStarted struct {
	RoomID      string         `json:"roomId"`
	Round       int            `json:"round"`
	TotalRounds int            `json:"totalRounds"`
	Shuffler    string         `json:"shuffler"`
	Scores      map[string]int `json:"scores"`
}

// RolesShuffled is the public body of roles_shuffled. Roles stay private
// except the guesser, who must reveal themselves to accuse.
type RolesShuffled struct {
	RoomID  string `json:"roomId"`
	Round   int    `json:"round"`
	Guesser string `json:"guesser"`
}

// RoleAssigned is the private body of role_assigned.
type RoleAssigned struct {
	RoomID string     `json:"roomId"`
	Round  int        `json:"round"`
	Role   roles.Role `json:"role"`
}

// RoleGameService runs the role-deduction engine inside rooms.
type RoleGameService struct {
	rooms    RoomAccess
	recorder *MatchRecorder
	clock    clockwork.Clock
	log      *zap.Logger
	pause    time.Duration

	// engine holds a shared rand source
	mu     sync.Mutex
	engine *roles.Engine
}

// NewRoleGameService creates a new role game service
func NewRoleGameService(
	rooms RoomAccess,
	engine *roles.Engine,
	recorder *MatchRecorder,
	clock clockwork.Clock,
	log *zap.Logger,
	pause time.Duration,
) *RoleGameService {
	return &RoleGameService{
		rooms:    rooms,
		engine:   engine,
		recorder: recorder,
		clock:    clock,
		log:      log,
		pause:    pause,
	}
}

func (s *RoleGameService) GameType() model.GameType {
	return model.GameRoles
}

func (s *RoleGameService) Capacity(requested int) (int, error) {
	if requested != 0 && requested != roles.RequiredPlayers {
		return 0, apperrors.New(apperrors.CodeRoomInvalidSettings, "This game needs exactly 4 players")
	}
	return roles.RequiredPlayers, nil
}

func (s *RoleGameService) Start(ctx context.Context, room *model.Room, res *model.Result) error {
	s.mu.Lock()
	st, err := s.engine.NewMatch(room.ParticipantIDs())
	s.mu.Unlock()
	if err != nil {
		return err
	}
	room.GameState = st
	s.announceRound(room, st, res)
	return nil
}

func (s *RoleGameService) Resync(room *model.Room, playerID string, res *model.Result) {
	st, ok := room.GameState.(roles.State)
	if !ok {
		return
	}
	if role, dealt := st.Roles[playerID]; dealt && st.Phase == roles.PhaseAwaitingGuess {
		res.Send(room.ID, playerID, model.MsgRoleAssigned, RoleAssigned{RoomID: room.ID, Round: st.Round, Role: role})
	}
}

func (s *RoleGameService) Abort(room *model.Room) []model.Standing {
	st, ok := room.GameState.(roles.State)
	if !ok {
		return nil
	}
	st.Phase = roles.PhaseFinished
	room.GameState = st
	return rank(st.Ranking(), st.Scores)
}

func (s *RoleGameService) PublicState(room *model.Room) any {
	st, ok := room.GameState.(roles.State)
	if !ok {
		return nil
	}
	return st
}

// Shuffle deals roles for the current round. Each participant learns only
// their own role.
func (s *RoleGameService) Shuffle(ctx context.Context, playerID, roomID string) error {
	return s.rooms.Mutate(ctx, roomID, playerID, func(ctx context.Context, room *model.Room, res *model.Result) error {
		st, err := s.state(room)
		if err != nil {
			return err
		}
		s.mu.Lock()
		next, err := s.engine.Shuffle(st, playerID)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		room.GameState = next

		res.Broadcast(room.ID, room.ParticipantIDs(), model.MsgRolesShuffled, RolesShuffled{
			RoomID:  room.ID,
			Round:   next.Round,
			Guesser: next.HolderOf(s.engine.Config().Guesser),
		})
		for _, p := range next.Players {
			res.Send(room.ID, p, model.MsgRoleAssigned, RoleAssigned{RoomID: room.ID, Round: next.Round, Role: next.Roles[p]})
		}
		return nil
	})
}

// Guess records the guesser's accusation, scores the round and schedules
// the next one.
func (s *RoleGameService) Guess(ctx context.Context, playerID, roomID, accused string) error {
	return s.rooms.Mutate(ctx, roomID, playerID, func(ctx context.Context, room *model.Room, res *model.Result) error {
		st, err := s.state(room)
		if err != nil {
			return err
		}
		s.mu.Lock()
		next, result, err := s.engine.Guess(st, playerID, accused)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		room.GameState = next

		record := model.RoundRecord{
			Round:   result.Round,
			Roles:   make(map[string]string, len(result.Roles)),
			Points:  result.Points,
			Accused: result.Accused,
			Correct: result.Correct,
			At:      s.clock.Now(),
		}
		for p, role := range result.Roles {
			record.Roles[p] = string(role)
		}
		if err := s.recorder.AppendRound(ctx, room.MatchID, record); err != nil {
			s.log.Error("failed to record round", zap.String("room_id", room.ID), zap.Error(err))
		}

		res.Broadcast(room.ID, room.ParticipantIDs(), model.MsgGuessResult, result)
		s.rooms.Schedule(room.ID, timerNextRound, s.pause, s.advance)
		return nil
	})
}

// advance moves to the next round or completes the match.
func (s *RoleGameService) advance(ctx context.Context, room *model.Room, res *model.Result) error {
	st, err := s.state(room)
	if err != nil {
		return err
	}
	s.mu.Lock()
	next, err := s.engine.NextRound(st)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	room.GameState = next

	if next.Finished() {
		s.rooms.FinishMatch(ctx, room, rank(next.Ranking(), next.Scores), model.ReasonCompleted, res)
		return nil
	}
	s.announceRound(room, next, res)
	return nil
}

func (s *RoleGameService) announceRound(room *model.Room, st roles.State, res *model.Result) {
	res.Broadcast(room.ID, room.ParticipantIDs(), model.MsgRoundStarted, RoundStarted{
		RoomID:      room.ID,
		Round:       st.Round,
		TotalRounds: st.TotalRounds,
		Shuffler:    st.Shuffler,
		Scores:      st.Scores,
	})
}

func (s *RoleGameService) state(room *model.Room) (roles.State, error) {
	if room.Status != model.RoomPlaying {
		return roles.State{}, apperrors.New(apperrors.CodeRoomNotPlaying, "The game has not started")
	}
	st, ok := room.GameState.(roles.State)
	if !ok {
		return roles.State{}, apperrors.New(apperrors.CodeWrongGameType, "This room plays a different game")
	}
	return st, nil
}

func rank(order []string, scores map[string]int) []model.Standing {
	out := make([]model.Standing, len(order))
	for i, p := range order {
		out[i] = model.Standing{PlayerID: p, Score: scores[p], Place: i + 1}
	}
	return out
}
