package service

import (
	"context"
	"slices"
	"sync"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/game/cards"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"go.uber.org/zap"
)

const (
	minCardPlayers     = 2
	maxCardPlayers     = 10
	defaultCardPlayers = 4
)

// CardGameState is the body of uno:game_state.
type CardGameState struct {
	RoomID string `json:"roomId"`
	cards.View
	LastPlay *cards.PlayOutcome `json:"lastPlay,omitempty"`
}

// CardHand is the private body of uno:hand.
type CardHand struct {
	RoomID string       `json:"roomId"`
	Cards  []cards.Card `json:"cards"`
}

// CardCaught is the body of uno:caught.
type CardCaught struct {
	RoomID    string `json:"roomId"`
	CatcherID string `json:"catcherId"`
	TargetID  string `json:"targetId"`
	Drawn     int    `json:"drawn"`
}

// CardCalled is the body of uno:called.
type CardCalled struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

// CardChallenge is the body of uno:challenge_result.
type CardChallenge struct {
	RoomID string `json:"roomId"`
	cards.ChallengeOutcome
}

// CardGameService runs the card engine inside rooms.
type CardGameService struct {
	rooms RoomAccess
	log   *zap.Logger

	// engine holds a shared rand source
	mu     sync.Mutex
	engine *cards.Engine
}

// NewCardGameService creates a new card game service
func NewCardGameService(rooms RoomAccess, engine *cards.Engine, log *zap.Logger) *CardGameService {
	return &CardGameService{
		rooms:  rooms,
		engine: engine,
		log:    log,
	}
}

func (s *CardGameService) GameType() model.GameType {
	return model.GameCards
}

func (s *CardGameService) Capacity(requested int) (int, error) {
	if requested == 0 {
		return defaultCardPlayers, nil
	}
	if requested < minCardPlayers || requested > maxCardPlayers {
		return 0, apperrors.New(apperrors.CodeRoomInvalidSettings, "Card rooms hold 2 to 10 players")
	}
	return requested, nil
}

func (s *CardGameService) Start(ctx context.Context, room *model.Room, res *model.Result) error {
	s.mu.Lock()
	st, err := s.engine.NewGame(room.ParticipantIDs())
	s.mu.Unlock()
	if err != nil {
		return err
	}
	room.GameState = st
	s.publish(room, st, nil, res, st.Players...)
	return nil
}

func (s *CardGameService) Resync(room *model.Room, playerID string, res *model.Result) {
	st, ok := room.GameState.(cards.State)
	if !ok {
		return
	}
	res.Send(room.ID, playerID, model.MsgUnoGameState, CardGameState{RoomID: room.ID, View: st.Public()})
	s.sendHand(room, st, playerID, res)
}

// Abort ranks finished players by placement, then the rest by fewest
// cards left.
func (s *CardGameService) Abort(room *model.Room) []model.Standing {
	st, ok := room.GameState.(cards.State)
	if !ok {
		return nil
	}
	st.Finished = true
	room.GameState = st
	return st.Standings()
}

func (s *CardGameService) PublicState(room *model.Room) any {
	st, ok := room.GameState.(cards.State)
	if !ok {
		return nil
	}
	return st.Public()
}

// Play plays a card from playerID's hand.
func (s *CardGameService) Play(ctx context.Context, playerID, roomID string, cardID int, color cards.Color) error {
	return s.rooms.Mutate(ctx, roomID, playerID, func(ctx context.Context, room *model.Room, res *model.Result) error {
		st, err := s.state(room)
		if err != nil {
			return err
		}
		s.mu.Lock()
		next, out, err := s.engine.Play(st, playerID, cardID, color)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		room.GameState = next
		s.publish(room, next, &out, res, playerID)
		s.finishIfDone(ctx, room, next, res)
		return nil
	})
}

// Draw draws the pending stack, or one card, and passes the turn.
func (s *CardGameService) Draw(ctx context.Context, playerID, roomID string) error {
	return s.rooms.Mutate(ctx, roomID, playerID, func(ctx context.Context, room *model.Room, res *model.Result) error {
		st, err := s.state(room)
		if err != nil {
			return err
		}
		s.mu.Lock()
		next, _, err := s.engine.Draw(st, playerID)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		room.GameState = next
		s.publish(room, next, nil, res, playerID)
		return nil
	})
}

// CallLastCard declares playerID is about to hold a single card.
func (s *CardGameService) CallLastCard(ctx context.Context, playerID, roomID string) error {
	return s.rooms.Mutate(ctx, roomID, playerID, func(ctx context.Context, room *model.Room, res *model.Result) error {
		st, err := s.state(room)
		if err != nil {
			return err
		}
		s.mu.Lock()
		next, err := s.engine.CallLastCard(st, playerID)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		room.GameState = next
		res.Broadcast(room.ID, room.ParticipantIDs(), model.MsgUnoCalled, CardCalled{RoomID: room.ID, PlayerID: playerID})
		s.publish(room, next, nil, res)
		return nil
	})
}

// Challenge contests the wild draw four playerID is facing.
func (s *CardGameService) Challenge(ctx context.Context, playerID, roomID string) error {
	return s.rooms.Mutate(ctx, roomID, playerID, func(ctx context.Context, room *model.Room, res *model.Result) error {
		st, err := s.state(room)
		if err != nil {
			return err
		}
		s.mu.Lock()
		next, out, err := s.engine.Challenge(st, playerID)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		room.GameState = next
		res.Broadcast(room.ID, room.ParticipantIDs(), model.MsgUnoChallenge, CardChallenge{RoomID: room.ID, ChallengeOutcome: out})
		s.publish(room, next, nil, res, out.Penalized)
		return nil
	})
}

// Catch penalizes targetID for an undeclared last card.
func (s *CardGameService) Catch(ctx context.Context, playerID, roomID, targetID string) error {
	return s.rooms.Mutate(ctx, roomID, playerID, func(ctx context.Context, room *model.Room, res *model.Result) error {
		st, err := s.state(room)
		if err != nil {
			return err
		}
		s.mu.Lock()
		next, drawn, err := s.engine.Catch(st, playerID, targetID)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		room.GameState = next
		res.Broadcast(room.ID, room.ParticipantIDs(), model.MsgUnoCaught, CardCaught{
			RoomID:    room.ID,
			CatcherID: playerID,
			TargetID:  targetID,
			Drawn:     len(drawn),
		})
		s.publish(room, next, nil, res, targetID)
		return nil
	})
}

func (s *CardGameService) finishIfDone(ctx context.Context, room *model.Room, st cards.State, res *model.Result) {
	if !st.Finished {
		return
	}
	s.rooms.FinishMatch(ctx, room, st.Standings(), model.ReasonCompleted, res)
}

// publish broadcasts the public state and re-sends the hands that changed.
func (s *CardGameService) publish(room *model.Room, st cards.State, last *cards.PlayOutcome, res *model.Result, changed ...string) {
	res.Broadcast(room.ID, room.ParticipantIDs(), model.MsgUnoGameState, CardGameState{
		RoomID:   room.ID,
		View:     st.Public(),
		LastPlay: last,
	})
	for _, p := range changed {
		s.sendHand(room, st, p, res)
	}
}

func (s *CardGameService) sendHand(room *model.Room, st cards.State, playerID string, res *model.Result) {
	res.Send(room.ID, playerID, model.MsgUnoHand, CardHand{
		RoomID: room.ID,
		Cards:  slices.Clone(st.Hands[playerID]),
	})
}

func (s *CardGameService) state(room *model.Room) (cards.State, error) {
	if room.Status != model.RoomPlaying {
		return cards.State{}, apperrors.New(apperrors.CodeRoomNotPlaying, "The game has not started")
	}
	st, ok := room.GameState.(cards.State)
	if !ok {
		return cards.State{}, apperrors.New(apperrors.CodeWrongGameType, "This room plays a different game")
	}
	return st, nil
}
