package ws

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/fault"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/game/cards"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/ratelimit"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/registry"
	"go.uber.org/zap"
)

// RoomActions are the lifecycle operations reachable over the socket.
type RoomActions interface {
	Join(ctx context.Context, player model.PlayerIdentity, roomID, passkey string) error
	Leave(ctx context.Context, playerID, roomID string) error
	SetReady(ctx context.Context, playerID, roomID string, ready bool) error
	Start(ctx context.Context, playerID, roomID string, gameType model.GameType) error
	Chat(ctx context.Context, playerID, roomID, text string) error
	Reconnect(ctx context.Context, playerID, roomID string) error
}

// RoleActions are the role game moves.
type RoleActions interface {
	Shuffle(ctx context.Context, playerID, roomID string) error
	Guess(ctx context.Context, playerID, roomID, accused string) error
}

// CardActions are the card game moves.
type CardActions interface {
	Play(ctx context.Context, playerID, roomID string, cardID int, color cards.Color) error
	Draw(ctx context.Context, playerID, roomID string) error
	CallLastCard(ctx context.Context, playerID, roomID string) error
	Challenge(ctx context.Context, playerID, roomID string) error
	Catch(ctx context.Context, playerID, roomID, targetID string) error
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type joinPayload struct {
	RoomID  string `json:"roomId"`
	Passkey string `json:"passkey"`
}

type readyPayload struct {
	RoomID  string `json:"roomId"`
	IsReady bool   `json:"isReady"`
}

type guessPayload struct {
	RoomID        string `json:"roomId"`
	GuessedUserID string `json:"guessedUserId"`
}

type chatPayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type playPayload struct {
	RoomID string      `json:"roomId"`
	CardID *int        `json:"cardId"`
	Color  cards.Color `json:"color"`
}

type catchPayload struct {
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
}

type handlerFunc func(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error

// Dispatcher routes inbound envelopes through the rate limiter and the fault
// guard to the room and game services.
type Dispatcher struct {
	rooms    RoomActions
	roles    RoleActions
	cards    CardActions
	registry *registry.Registry
	limiter  *ratelimit.Limiter
	guard    *fault.Guard
	log      *zap.Logger
	handlers map[string]handlerFunc
}

// NewDispatcher creates a dispatcher with the full event table.
func NewDispatcher(
	rooms RoomActions,
	roles RoleActions,
	cardGame CardActions,
	reg *registry.Registry,
	limiter *ratelimit.Limiter,
	guard *fault.Guard,
	log *zap.Logger,
) *Dispatcher {
	d := &Dispatcher{
		rooms:    rooms,
		roles:    roles,
		cards:    cardGame,
		registry: reg,
		limiter:  limiter,
		guard:    guard,
		log:      log,
	}
	d.handlers = map[string]handlerFunc{
		model.EvJoinRoom:         d.joinRoom,
		model.EvLeaveRoom:        d.leaveRoom,
		model.EvPlayerReady:      d.playerReady,
		model.EvStartRound:       d.start(model.GameRoles),
		model.EvUnoStartGame:     d.start(model.GameCards),
		model.EvShuffleRoles:     d.shuffleRoles,
		model.EvGuessChor:        d.guessChor,
		model.EvSendMessage:      d.sendMessage,
		model.EvRequestReconnect: d.requestReconnect,
		model.EvUnoPlayCard:      d.playCard,
		model.EvUnoDrawCard:      d.roomMove(d.cards.Draw),
		model.EvUnoCallUno:       d.roomMove(d.cards.CallLastCard),
		model.EvUnoChallenge:     d.roomMove(d.cards.Challenge),
		model.EvUnoCatchPlayer:   d.catchPlayer,
	}
	return d
}

// Dispatch handles one inbound envelope from player and returns the reply
// owed to the sending connection, if any. Room-wide effects are delivered
// by the services themselves.
func (d *Dispatcher) Dispatch(ctx context.Context, player model.PlayerIdentity, env model.Envelope) *model.Outbound {
	d.registry.Touch(player.ID)

	if !d.limiter.Allow(player.ID, env.Type) {
		d.log.Debug("rate limited", zap.String("player_id", player.ID), zap.String("event", env.Type))
		return reply(player.ID, model.MsgRateLimitExceeded, model.ErrorPayload{
			Code:    string(apperrors.CodeRateLimited),
			Message: "Too many requests, slow down",
			Event:   env.Type,
		})
	}

	handle, ok := d.handlers[env.Type]
	if !ok {
		return reply(player.ID, model.MsgError, model.ErrorPayload{
			Code:    string(apperrors.CodeUnknownEvent),
			Message: "Unknown event",
			Event:   env.Type,
		})
	}

	err := d.guard.Do(env.Type, player.ID, func() error {
		return handle(ctx, player, env.Payload)
	})
	if err == nil {
		return nil
	}
	return reply(player.ID, model.MsgError, model.ErrorPayload{
		Code:    string(apperrors.CodeOf(err)),
		Message: fault.ClientMessage(err),
		Event:   env.Type,
	})
}

func reply(playerID, msgType string, payload model.ErrorPayload) *model.Outbound {
	return &model.Outbound{
		Recipients: []string{playerID},
		Type:       msgType,
		Payload:    payload,
	}
}

// decode unmarshals raw into v and requires a room id.
func decode(raw json.RawMessage, v any, roomID func() string) error {
	if len(raw) == 0 {
		return apperrors.New(apperrors.CodeInvalidPayload, "Missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidPayload, "Malformed payload", err)
	}
	if strings.TrimSpace(roomID()) == "" {
		return apperrors.New(apperrors.CodeInvalidPayload, "roomId is required")
	}
	return nil
}

func (d *Dispatcher) joinRoom(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error {
	var p joinPayload
	if err := decode(raw, &p, func() string { return p.RoomID }); err != nil {
		return err
	}
	return d.rooms.Join(ctx, player, p.RoomID, p.Passkey)
}

func (d *Dispatcher) leaveRoom(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error {
	var p roomPayload
	if err := decode(raw, &p, func() string { return p.RoomID }); err != nil {
		return err
	}
	return d.rooms.Leave(ctx, player.ID, p.RoomID)
}

func (d *Dispatcher) playerReady(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error {
	var p readyPayload
	if err := decode(raw, &p, func() string { return p.RoomID }); err != nil {
		return err
	}
	return d.rooms.SetReady(ctx, player.ID, p.RoomID, p.IsReady)
}

func (d *Dispatcher) start(gameType model.GameType) handlerFunc {
	return func(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error {
		var p roomPayload
		if err := decode(raw, &p, func() string { return p.RoomID }); err != nil {
			return err
		}
		return d.rooms.Start(ctx, player.ID, p.RoomID, gameType)
	}
}

func (d *Dispatcher) shuffleRoles(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error {
	var p roomPayload
	if err := decode(raw, &p, func() string { return p.RoomID }); err != nil {
		return err
	}
	return d.roles.Shuffle(ctx, player.ID, p.RoomID)
}

func (d *Dispatcher) guessChor(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error {
	var p guessPayload
	if err := decode(raw, &p, func() string { return p.RoomID }); err != nil {
		return err
	}
	return d.roles.Guess(ctx, player.ID, p.RoomID, p.GuessedUserID)
}

func (d *Dispatcher) sendMessage(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error {
	var p chatPayload
	if err := decode(raw, &p, func() string { return p.RoomID }); err != nil {
		return err
	}
	return d.rooms.Chat(ctx, player.ID, p.RoomID, p.Message)
}

// requestReconnect falls back to the room the registry still binds when the
// client lost track of its room id.
func (d *Dispatcher) requestReconnect(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error {
	var p roomPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidPayload, "Malformed payload", err)
		}
	}
	if p.RoomID == "" {
		roomID, ok := d.registry.CurrentRoom(player.ID)
		if !ok {
			return apperrors.New(apperrors.CodeNotInRoom, "You are not in a room")
		}
		p.RoomID = roomID
	}
	return d.rooms.Reconnect(ctx, player.ID, p.RoomID)
}

func (d *Dispatcher) playCard(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error {
	var p playPayload
	if err := decode(raw, &p, func() string { return p.RoomID }); err != nil {
		return err
	}
	if p.CardID == nil {
		return apperrors.New(apperrors.CodeInvalidPayload, "cardId is required")
	}
	return d.cards.Play(ctx, player.ID, p.RoomID, *p.CardID, p.Color)
}

func (d *Dispatcher) catchPlayer(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error {
	var p catchPayload
	if err := decode(raw, &p, func() string { return p.RoomID }); err != nil {
		return err
	}
	return d.cards.Catch(ctx, player.ID, p.RoomID, p.TargetID)
}

// roomMove adapts a move that needs nothing beyond the room id.
func (d *Dispatcher) roomMove(move func(ctx context.Context, playerID, roomID string) error) handlerFunc {
	return func(ctx context.Context, player model.PlayerIdentity, raw json.RawMessage) error {
		var p roomPayload
		if err := decode(raw, &p, func() string { return p.RoomID }); err != nil {
			return err
		}
		return move(ctx, player.ID, p.RoomID)
	}
}
