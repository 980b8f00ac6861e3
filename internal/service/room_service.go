package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/cache"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/registry"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/repository"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxChatRunes    = 500
	maxRoomNameLen  = 60
	timerCallbackTO = 10 * time.Second
)

// RoomConfig holds the lifecycle timings.
type RoomConfig struct {
	NoStartTimeout time.Duration
	MaxDuration    time.Duration
	ReconnectGrace time.Duration
	SweepInterval  time.Duration
}

// DefaultRoomConfig returns the production timings.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		NoStartTimeout: 15 * time.Minute,
		MaxDuration:    30 * time.Minute,
		ReconnectGrace: 2 * time.Minute,
		SweepInterval:  time.Minute,
	}
}

// MutateFunc runs with exclusive access to one room. Messages added to res
// are delivered in order before the room is released.
type MutateFunc func(ctx context.Context, room *model.Room, res *model.Result) error

// RoomAccess is the part of the lifecycle manager game engines build on.
type RoomAccess interface {
	// Mutate runs fn on roomID after checking playerID is a participant.
	// An empty playerID skips the membership check.
	Mutate(ctx context.Context, roomID, playerID string, fn MutateFunc) error
	// Schedule runs fn on roomID after d while the room is still playing.
	// Re-scheduling the same reason replaces the earlier timer.
	Schedule(roomID, reason string, d time.Duration, fn MutateFunc)
	// FinishMatch ends the running match with the given ranking.
	FinishMatch(ctx context.Context, room *model.Room, standings []model.Standing, reason string, res *model.Result)
}

// GameEngine adapts one pure game state machine onto rooms.
type GameEngine interface {
	GameType() model.GameType
	// Capacity validates a requested room size. Zero asks for the default.
	Capacity(requested int) (int, error)
	// Start initializes room.GameState for the room's participants.
	Start(ctx context.Context, room *model.Room, res *model.Result) error
	// Resync re-sends playerID's private state after a reconnect.
	Resync(room *model.Room, playerID string, res *model.Result)
	// Abort stops the game early and ranks every participant, including
	// one who is departing, by the engine's score.
	Abort(room *model.Room) []model.Standing
	// PublicState is the game part of room_updated.
	PublicState(room *model.Room) any
}

// CreateRoomInput is a room creation request.
type CreateRoomInput struct {
	Name       string           `json:"name"`
	Visibility model.Visibility `json:"visibility"`
	Passkey    string           `json:"passkey,omitempty"`
	Capacity   int              `json:"capacity"`
	GameType   model.GameType   `json:"gameType"`
}

type liveRoom struct {
	mu      sync.Mutex
	room    *model.Room
	removed bool
}

// RoomService is the room lifecycle manager. Each room is guarded by its
// own mutex held for the whole transition, persistence included. Lock order
// is room, then registry or hub; the room map lock is never held while a
// room lock is being acquired.
type RoomService struct {
	cfg         RoomConfig
	clock       clockwork.Clock
	log         *zap.Logger
	registry    *registry.Registry
	roomRepo    repository.RoomRepo
	roomCache   cache.RoomCache
	recorder    *MatchRecorder
	broadcaster Broadcaster
	engines     map[model.GameType]GameEngine

	mu    sync.RWMutex
	rooms map[string]*liveRoom
}

// NewRoomService creates a new room service
func NewRoomService(
	cfg RoomConfig,
	clock clockwork.Clock,
	log *zap.Logger,
	reg *registry.Registry,
	roomRepo repository.RoomRepo,
	roomCache cache.RoomCache,
	recorder *MatchRecorder,
) *RoomService {
	return &RoomService{
		cfg:       cfg,
		clock:     clock,
		log:       log,
		registry:  reg,
		roomRepo:  roomRepo,
		roomCache: roomCache,
		recorder:  recorder,
		engines:   make(map[model.GameType]GameEngine),
		rooms:     make(map[string]*liveRoom),
	}
}

// SetBroadcaster sets the broadcaster (called after hub is created)
func (s *RoomService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// RegisterEngine makes a game type available to rooms.
func (s *RoomService) RegisterEngine(e GameEngine) {
	s.engines[e.GameType()] = e
}

func (s *RoomService) emit(res *model.Result) {
	if s.broadcaster == nil || len(res.Messages) == 0 {
		return
	}
	s.broadcaster.Deliver(res.Messages...)
}

func (s *RoomService) live(roomID string) *liveRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[roomID]
}

// acquire locks roomID and returns it, or a not-found rejection.
func (s *RoomService) acquire(roomID string) (*liveRoom, error) {
	lr := s.live(roomID)
	if lr == nil {
		return nil, apperrors.New(apperrors.CodeRoomNotFound, "Room not found")
	}
	lr.mu.Lock()
	if lr.removed {
		lr.mu.Unlock()
		return nil, apperrors.New(apperrors.CodeRoomNotFound, "Room not found")
	}
	return lr, nil
}

func (s *RoomService) timerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timerCallbackTO)
}

// Create opens a room with host as its only participant and arms the
// no-start and max-duration timers.
func (s *RoomService) Create(ctx context.Context, host model.PlayerIdentity, in CreateRoomInput) (*model.RoomView, error) {
	engine, ok := s.engines[in.GameType]
	if !ok {
		return nil, apperrors.New(apperrors.CodeRoomInvalidSettings, "Unknown game type")
	}
	capacity, err := engine.Capacity(in.Capacity)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = host.DisplayName + "'s room"
	}
	if utf8.RuneCountInString(name) > maxRoomNameLen {
		return nil, apperrors.New(apperrors.CodeRoomInvalidSettings, "Room name is too long")
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = model.VisibilityPublic
	}
	if visibility != model.VisibilityPublic && visibility != model.VisibilityPrivate {
		return nil, apperrors.New(apperrors.CodeRoomInvalidSettings, "Visibility must be public or private")
	}

	var passkeyHash string
	if in.Passkey != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Passkey), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperrors.New(apperrors.CodeRoomInvalidSettings, "Passkey is not usable")
		}
		passkeyHash = string(hash)
	}

	id, err := s.generateRoomID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate room id: %w", err)
	}
	if held, ok := s.registry.ClaimRoom(host.ID, id); !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeAlreadyInRoom, "Leave your current room first",
			map[string]string{"roomId": held})
	}

	now := s.clock.Now()
	transportID, online := s.registry.Lookup(host.ID)
	room := &model.Room{
		ID:          id,
		Name:        name,
		Visibility:  visibility,
		PasskeyHash: passkeyHash,
		HostID:      host.ID,
		Participants: []*model.Participant{{
			PlayerIdentity: host,
			Connected:      online,
			TransportID:    transportID,
			LastActiveAt:   now,
			JoinedAt:       now,
		}},
		Capacity:  capacity,
		Status:    model.RoomWaiting,
		GameType:  in.GameType,
		CreatedAt: now,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		s.registry.UnbindRoom(host.ID, id)
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	lr := &liveRoom{room: room}
	lr.mu.Lock()
	defer lr.mu.Unlock()
	s.mu.Lock()
	s.rooms[id] = lr
	s.mu.Unlock()

	s.armRoomTimer(id, model.ReasonTimeoutNoStart, s.cfg.NoStartTimeout)
	s.armRoomTimer(id, model.ReasonMaxDuration, s.cfg.MaxDuration)
	s.syncCache(ctx, room)

	s.log.Info("room created",
		zap.String("room_id", id),
		zap.String("player_id", host.ID),
		zap.String("game_type", string(room.GameType)))

	res := &model.Result{}
	view := s.view(room)
	res.Broadcast(room.ID, room.ParticipantIDs(), model.MsgRoomUpdated, view)
	s.emit(res)
	return view, nil
}

// QuickMatch joins the oldest open public room of gameType, or creates one.
func (s *RoomService) QuickMatch(ctx context.Context, player model.PlayerIdentity, gameType model.GameType) (*model.RoomView, error) {
	if _, ok := s.engines[gameType]; !ok {
		return nil, apperrors.New(apperrors.CodeRoomInvalidSettings, "Unknown game type")
	}
	if held, ok := s.registry.CurrentRoom(player.ID); ok {
		return nil, apperrors.WithMetadata(apperrors.CodeAlreadyInRoom, "Leave your current room first",
			map[string]string{"roomId": held})
	}

	ids, err := s.roomCache.ListOpen(ctx, gameType, 20)
	if err != nil {
		s.log.Warn("open room directory unavailable", zap.Error(err))
	}
	for _, id := range ids {
		err := s.Join(ctx, player, id, "")
		if err == nil {
			return s.Get(ctx, id)
		}
		if !apperrors.IsRejection(err) {
			return nil, err
		}
		if apperrors.CodeOf(err) == apperrors.CodeRoomNotFound {
			if err := s.roomCache.Delete(ctx, id); err != nil {
				s.log.Warn("failed to prune room directory", zap.String("room_id", id), zap.Error(err))
			}
		}
	}

	return s.Create(ctx, player, CreateRoomInput{
		Visibility: model.VisibilityPublic,
		GameType:   gameType,
	})
}

// Join admits player into a waiting room. A player who already holds a
// participant record resumes it instead, regardless of room status.
func (s *RoomService) Join(ctx context.Context, player model.PlayerIdentity, roomID, passkey string) error {
	lr, err := s.acquire(roomID)
	if err != nil {
		return err
	}
	defer lr.mu.Unlock()
	room := lr.room
	res := &model.Result{}

	if p := room.Participant(player.ID); p != nil {
		s.resume(room, p, res)
		s.persistQuiet(ctx, room)
		s.emit(res)
		return nil
	}

	if room.Status != model.RoomWaiting {
		return apperrors.New(apperrors.CodeRoomNotWaiting, "This game has already started")
	}
	if len(room.Participants) >= room.Capacity {
		return apperrors.New(apperrors.CodeRoomFull, "Room is full")
	}
	if room.HasPasskey() {
		if err := bcrypt.CompareHashAndPassword([]byte(room.PasskeyHash), []byte(passkey)); err != nil {
			return apperrors.New(apperrors.CodePasskeyMismatch, "Wrong passkey")
		}
	}
	if held, ok := s.registry.ClaimRoom(player.ID, room.ID); !ok {
		return apperrors.WithMetadata(apperrors.CodeAlreadyInRoom, "Leave your current room first",
			map[string]string{"roomId": held})
	}

	now := s.clock.Now()
	transportID, online := s.registry.Lookup(player.ID)
	p := &model.Participant{
		PlayerIdentity: player,
		Connected:      online,
		TransportID:    transportID,
		LastActiveAt:   now,
		JoinedAt:       now,
	}
	room.Participants = append(room.Participants, p)
	if err := s.roomRepo.Update(ctx, room); err != nil {
		room.Participants = room.Participants[:len(room.Participants)-1]
		s.registry.UnbindRoom(player.ID, room.ID)
		return fmt.Errorf("failed to join room %s: %w", room.ID, err)
	}
	s.syncCache(ctx, room)

	ids := room.ParticipantIDs()
	res.Broadcast(room.ID, ids, model.MsgPlayerJoined, model.PlayerEvent{
		RoomID:      room.ID,
		PlayerID:    player.ID,
		DisplayName: player.DisplayName,
	})
	res.Broadcast(room.ID, ids, model.MsgRoomUpdated, s.view(room))
	s.emit(res)
	return nil
}

// Reconnect resumes playerID's participant record inside the grace window.
// Calling it again changes nothing but re-sends the caller's state.
func (s *RoomService) Reconnect(ctx context.Context, playerID, roomID string) error {
	lr, err := s.acquire(roomID)
	if err != nil {
		return err
	}
	defer lr.mu.Unlock()
	room := lr.room

	p := room.Participant(playerID)
	if p == nil {
		return apperrors.New(apperrors.CodeNotInRoom, "You are not in this room")
	}
	res := &model.Result{}
	s.resume(room, p, res)
	s.persistQuiet(ctx, room)
	s.emit(res)
	return nil
}

func (s *RoomService) resume(room *model.Room, p *model.Participant, res *model.Result) {
	s.registry.CancelReconnectTimer(p.ID)
	s.registry.BindRoom(p.ID, room.ID)

	transportID, online := s.registry.Lookup(p.ID)
	wasConnected := p.Connected
	p.Connected = online
	p.TransportID = transportID
	p.LastActiveAt = s.clock.Now()

	view := s.view(room)
	if !wasConnected && online {
		ids := room.ParticipantIDs()
		res.Broadcast(room.ID, ids, model.MsgPlayerReconnected, model.PlayerEvent{
			RoomID:      room.ID,
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
		})
		res.Broadcast(room.ID, ids, model.MsgRoomUpdated, view)
	} else {
		res.Send(room.ID, p.ID, model.MsgRoomUpdated, view)
	}
	if room.Status == model.RoomPlaying {
		if engine, ok := s.engines[room.GameType]; ok {
			engine.Resync(room, p.ID, res)
		}
	}
}

// Leave removes playerID immediately.
func (s *RoomService) Leave(ctx context.Context, playerID, roomID string) error {
	lr, err := s.acquire(roomID)
	if err != nil {
		return err
	}
	defer lr.mu.Unlock()

	if lr.room.Participant(playerID) == nil {
		return apperrors.New(apperrors.CodeNotInRoom, "You are not in this room")
	}
	res := &model.Result{}
	s.depart(ctx, lr, playerID, model.ReasonPlayerLeft, res)
	s.emit(res)
	return nil
}

// Disconnect handles a dropped transport. The participant is kept, marked
// disconnected, and removed only if the grace window expires.
func (s *RoomService) Disconnect(ctx context.Context, playerID, transportID string) {
	if !s.registry.Detach(playerID, transportID) {
		return
	}
	roomID, ok := s.registry.CurrentRoom(playerID)
	if !ok {
		return
	}
	lr, err := s.acquire(roomID)
	if err != nil {
		s.registry.UnbindRoom(playerID, roomID)
		return
	}
	defer lr.mu.Unlock()
	room := lr.room

	p := room.Participant(playerID)
	if p == nil {
		s.registry.UnbindRoom(playerID, roomID)
		return
	}
	if _, online := s.registry.Lookup(playerID); online {
		// A newer connection attached before we got the lock.
		return
	}
	p.Connected = false
	p.TransportID = ""
	p.LastActiveAt = s.clock.Now()
	s.registry.ArmReconnectTimer(playerID, s.cfg.ReconnectGrace, func() {
		s.onReconnectExpired(playerID, roomID)
	})
	s.persistQuiet(ctx, room)

	s.log.Info("player disconnected",
		zap.String("room_id", roomID),
		zap.String("player_id", playerID),
		zap.Duration("grace", s.cfg.ReconnectGrace))

	res := &model.Result{}
	ids := room.ParticipantIDs()
	res.Broadcast(room.ID, ids, model.MsgPlayerDisconnected, model.PlayerEvent{
		RoomID:       room.ID,
		PlayerID:     playerID,
		DisplayName:  p.DisplayName,
		GraceSeconds: int(s.cfg.ReconnectGrace / time.Second),
	})
	res.Broadcast(room.ID, ids, model.MsgRoomUpdated, s.view(room))
	s.emit(res)
}

func (s *RoomService) onReconnectExpired(playerID, roomID string) {
	lr, err := s.acquire(roomID)
	if err != nil {
		return
	}
	defer lr.mu.Unlock()

	p := lr.room.Participant(playerID)
	if p == nil || p.Connected {
		return
	}
	ctx, cancel := s.timerContext()
	defer cancel()

	s.log.Info("reconnect grace expired", zap.String("room_id", roomID), zap.String("player_id", playerID))
	res := &model.Result{}
	s.depart(ctx, lr, playerID, model.ReasonPlayerLeft, res)
	s.emit(res)
}

// depart removes playerID from a locked room, ending a running match first.
func (s *RoomService) depart(ctx context.Context, lr *liveRoom, playerID, reason string, res *model.Result) {
	room := lr.room
	if room.Status == model.RoomPlaying {
		standings := s.engines[room.GameType].Abort(room)
		s.finishMatch(ctx, room, standings, reason, res)
	}

	room.Participants = slices.DeleteFunc(room.Participants, func(p *model.Participant) bool {
		return p.ID == playerID
	})
	s.registry.CancelReconnectTimer(playerID)
	s.registry.UnbindRoom(playerID, room.ID)

	remaining := room.ParticipantIDs()
	res.Broadcast(room.ID, append(remaining, playerID), model.MsgPlayerLeft, model.PlayerEvent{
		RoomID:   room.ID,
		PlayerID: playerID,
		Reason:   reason,
	})
	s.log.Info("player left room", zap.String("room_id", room.ID), zap.String("player_id", playerID))

	switch {
	case playerID == room.HostID:
		s.disband(ctx, lr, model.ReasonHostLeft, res)
	case len(room.Participants) == 0:
		s.remove(ctx, lr, model.ReasonEmpty)
	default:
		s.persistQuiet(ctx, room)
		s.syncCache(ctx, room)
		res.Broadcast(room.ID, remaining, model.MsgRoomUpdated, s.view(room))
	}
}

// disband notifies every participant and removes the room. A running match
// is finalized first.
func (s *RoomService) disband(ctx context.Context, lr *liveRoom, reason string, res *model.Result) {
	room := lr.room
	if room.Status == model.RoomPlaying {
		standings := s.engines[room.GameType].Abort(room)
		s.finishMatch(ctx, room, standings, reason, res)
	}
	ids := room.ParticipantIDs()
	res.Broadcast(room.ID, ids, model.MsgRoomDisbanded, model.RoomDisbanded{RoomID: room.ID, Reason: reason})
	for _, id := range ids {
		s.registry.CancelReconnectTimer(id)
		s.registry.UnbindRoom(id, room.ID)
	}
	s.remove(ctx, lr, reason)
}

// remove drops a locked room from memory, the directory and the store.
// Finished rooms keep their document as history.
func (s *RoomService) remove(ctx context.Context, lr *liveRoom, reason string) {
	room := lr.room
	lr.removed = true
	s.registry.CancelRoomTimer(room.ID)

	s.mu.Lock()
	if s.rooms[room.ID] == lr {
		delete(s.rooms, room.ID)
	}
	s.mu.Unlock()

	if err := s.roomCache.Delete(ctx, room.ID); err != nil {
		s.log.Warn("failed to drop room from directory", zap.String("room_id", room.ID), zap.Error(err))
	}
	var err error
	if room.Status == model.RoomFinished {
		err = s.roomRepo.Update(ctx, room)
	} else {
		err = s.roomRepo.Delete(ctx, room.ID)
	}
	if err != nil {
		s.log.Error("failed to persist room removal", zap.String("room_id", room.ID), zap.Error(err))
	}
	s.log.Info("room removed", zap.String("room_id", room.ID), zap.String("reason", reason))
}

// SetReady toggles playerID's readiness while the room is waiting.
func (s *RoomService) SetReady(ctx context.Context, playerID, roomID string, ready bool) error {
	lr, err := s.acquire(roomID)
	if err != nil {
		return err
	}
	defer lr.mu.Unlock()
	room := lr.room

	p := room.Participant(playerID)
	if p == nil {
		return apperrors.New(apperrors.CodeNotInRoom, "You are not in this room")
	}
	if room.Status != model.RoomWaiting {
		return apperrors.New(apperrors.CodeRoomNotWaiting, "This game has already started")
	}
	prev := p.Ready
	p.Ready = ready
	p.LastActiveAt = s.clock.Now()
	if err := s.roomRepo.Update(ctx, room); err != nil {
		p.Ready = prev
		return fmt.Errorf("failed to update readiness in room %s: %w", room.ID, err)
	}

	res := &model.Result{}
	res.Broadcast(room.ID, room.ParticipantIDs(), model.MsgRoomUpdated, s.view(room))
	s.emit(res)
	return nil
}

// Start begins the game. Only the host may start, and only a full room in
// which every participant is ready.
func (s *RoomService) Start(ctx context.Context, playerID, roomID string, gameType model.GameType) error {
	lr, err := s.acquire(roomID)
	if err != nil {
		return err
	}
	defer lr.mu.Unlock()
	room := lr.room

	if room.Participant(playerID) == nil {
		return apperrors.New(apperrors.CodeNotInRoom, "You are not in this room")
	}
	if room.GameType != gameType {
		return apperrors.New(apperrors.CodeWrongGameType, "This room plays a different game")
	}
	if room.HostID != playerID {
		return apperrors.New(apperrors.CodeNotHost, "Only the host can start the game")
	}
	if room.Status != model.RoomWaiting {
		return apperrors.New(apperrors.CodeRoomNotWaiting, "This game has already started")
	}
	if len(room.Participants) < room.Capacity {
		return apperrors.WithMetadata(apperrors.CodeNotEnoughPlayers, "Waiting for more players",
			map[string]string{"have": fmt.Sprint(len(room.Participants)), "need": fmt.Sprint(room.Capacity)})
	}
	for _, p := range room.Participants {
		if !p.Ready {
			return apperrors.New(apperrors.CodePlayersNotReady, "Everyone must be ready")
		}
	}

	engine := s.engines[room.GameType]
	now := s.clock.Now()
	matchID, err := s.recorder.CreateMatch(ctx, room, now)
	if err != nil {
		return err
	}
	room.MatchID = matchID
	started := &model.Result{}
	if err := engine.Start(ctx, room, started); err != nil {
		room.MatchID = ""
		return err
	}
	room.Status = model.RoomPlaying
	room.StartedAt = &now

	s.registry.CancelRoomTimerReason(room.ID, model.ReasonTimeoutNoStart)
	s.armRoomTimer(room.ID, model.ReasonMaxDuration, s.cfg.MaxDuration)
	s.persistQuiet(ctx, room)
	s.syncCache(ctx, room)

	s.log.Info("game started",
		zap.String("room_id", room.ID),
		zap.String("match_id", matchID),
		zap.String("game_type", string(room.GameType)))

	res := &model.Result{}
	res.Broadcast(room.ID, room.ParticipantIDs(), model.MsgRoomUpdated, s.view(room))
	res.Merge(started)
	s.emit(res)
	return nil
}

// Chat relays a trimmed message to the room.
func (s *RoomService) Chat(ctx context.Context, playerID, roomID, text string) error {
	lr, err := s.acquire(roomID)
	if err != nil {
		return err
	}
	defer lr.mu.Unlock()
	room := lr.room

	p := room.Participant(playerID)
	if p == nil {
		return apperrors.New(apperrors.CodeNotInRoom, "You are not in this room")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return apperrors.New(apperrors.CodeEmptyMessage, "Message is empty")
	}
	if utf8.RuneCountInString(text) > maxChatRunes {
		text = string([]rune(text)[:maxChatRunes])
	}
	p.LastActiveAt = s.clock.Now()

	res := &model.Result{}
	res.Broadcast(room.ID, room.ParticipantIDs(), model.MsgNewMessage, model.ChatMessage{
		RoomID:      room.ID,
		PlayerID:    p.ID,
		DisplayName: p.DisplayName,
		Message:     text,
		SentAt:      p.LastActiveAt,
	})
	s.emit(res)
	return nil
}

// Get returns the sanitized room. Rooms no longer live are read from the
// store without their game state.
func (s *RoomService) Get(ctx context.Context, roomID string) (*model.RoomView, error) {
	if lr, err := s.acquire(roomID); err == nil {
		defer lr.mu.Unlock()
		return s.view(lr.room), nil
	}
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	if room == nil {
		return nil, apperrors.New(apperrors.CodeRoomNotFound, "Room not found")
	}
	return s.view(room), nil
}

// Mutate implements RoomAccess.
func (s *RoomService) Mutate(ctx context.Context, roomID, playerID string, fn MutateFunc) error {
	lr, err := s.acquire(roomID)
	if err != nil {
		return err
	}
	defer lr.mu.Unlock()
	room := lr.room

	if playerID != "" {
		p := room.Participant(playerID)
		if p == nil {
			return apperrors.New(apperrors.CodeNotInRoom, "You are not in this room")
		}
		p.LastActiveAt = s.clock.Now()
	}

	res := &model.Result{}
	err = fn(ctx, room, res)
	if err == nil {
		if perr := s.roomRepo.Update(ctx, room); perr != nil {
			err = fmt.Errorf("failed to persist room %s: %w", room.ID, perr)
		}
	}
	s.emit(res)
	return err
}

// Schedule implements RoomAccess.
func (s *RoomService) Schedule(roomID, reason string, d time.Duration, fn MutateFunc) {
	s.registry.ArmRoomTimer(roomID, d, reason, func() {
		lr, err := s.acquire(roomID)
		if err != nil {
			return
		}
		defer lr.mu.Unlock()
		if lr.room.Status != model.RoomPlaying {
			return
		}
		ctx, cancel := s.timerContext()
		defer cancel()

		res := &model.Result{}
		if err := fn(ctx, lr.room, res); err != nil {
			s.log.Error("scheduled room task failed",
				zap.String("room_id", roomID),
				zap.String("reason", reason),
				zap.Error(err))
		}
		s.persistQuiet(ctx, lr.room)
		s.emit(res)
	})
}

// FinishMatch implements RoomAccess.
func (s *RoomService) FinishMatch(ctx context.Context, room *model.Room, standings []model.Standing, reason string, res *model.Result) {
	s.finishMatch(ctx, room, standings, reason, res)
}

func (s *RoomService) finishMatch(ctx context.Context, room *model.Room, standings []model.Standing, reason string, res *model.Result) {
	if room.Status != model.RoomPlaying {
		return
	}
	now := s.clock.Now()
	room.Status = model.RoomFinished
	room.EndedAt = &now

	result := model.MatchResult{
		Standings: standings,
		Reason:    reason,
		EndedAt:   now,
	}
	if len(standings) > 0 {
		result.WinnerID = standings[0].PlayerID
	}
	if room.MatchID != "" {
		if err := s.recorder.FinalizeMatch(ctx, room, result); err != nil {
			s.log.Error("failed to finalize match",
				zap.String("room_id", room.ID),
				zap.String("match_id", room.MatchID),
				zap.Error(err))
		}
	}
	s.syncCache(ctx, room)

	s.log.Info("game finished",
		zap.String("room_id", room.ID),
		zap.String("match_id", room.MatchID),
		zap.String("winner_id", result.WinnerID),
		zap.String("reason", reason))

	ids := room.ParticipantIDs()
	res.Broadcast(room.ID, ids, model.MsgGameFinished, model.GameFinished{
		RoomID:    room.ID,
		MatchID:   room.MatchID,
		Reason:    reason,
		WinnerID:  result.WinnerID,
		Standings: standings,
		Game:      s.engines[room.GameType].PublicState(room),
	})
	res.Broadcast(room.ID, ids, model.MsgRoomUpdated, s.view(room))
}

func (s *RoomService) armRoomTimer(roomID, reason string, d time.Duration) {
	s.registry.ArmRoomTimer(roomID, d, reason, func() {
		s.onRoomTimer(roomID, reason)
	})
}

func (s *RoomService) onRoomTimer(roomID, reason string) {
	lr, err := s.acquire(roomID)
	if err != nil {
		return
	}
	defer lr.mu.Unlock()
	if reason == model.ReasonTimeoutNoStart && lr.room.Status != model.RoomWaiting {
		return
	}
	ctx, cancel := s.timerContext()
	defer cancel()

	s.log.Info("room timer fired", zap.String("room_id", roomID), zap.String("reason", reason))
	res := &model.Result{}
	s.disband(ctx, lr, reason, res)
	s.emit(res)
}

// Sweep removes rooms left without participants. It returns how many.
func (s *RoomService) Sweep(ctx context.Context) int {
	s.mu.RLock()
	live := make([]*liveRoom, 0, len(s.rooms))
	for _, lr := range s.rooms {
		live = append(live, lr)
	}
	s.mu.RUnlock()

	removed := 0
	for _, lr := range live {
		lr.mu.Lock()
		if !lr.removed && len(lr.room.Participants) == 0 {
			s.remove(ctx, lr, model.ReasonEmpty)
			removed++
		}
		lr.mu.Unlock()
	}
	return removed
}

// Run sweeps every SweepInterval until ctx is done.
func (s *RoomService) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if n := s.Sweep(ctx); n > 0 {
				s.log.Info("swept empty rooms", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown disbands every live room.
func (s *RoomService) Shutdown(ctx context.Context) {
	s.mu.RLock()
	live := make([]*liveRoom, 0, len(s.rooms))
	for _, lr := range s.rooms {
		live = append(live, lr)
	}
	s.mu.RUnlock()

	for _, lr := range live {
		lr.mu.Lock()
		if !lr.removed {
			res := &model.Result{}
			s.disband(ctx, lr, model.ReasonShutdown, res)
			s.emit(res)
		}
		lr.mu.Unlock()
	}
}

// Count returns the number of live rooms.
func (s *RoomService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *RoomService) persistQuiet(ctx context.Context, room *model.Room) {
	if err := s.roomRepo.Update(ctx, room); err != nil {
		s.log.Error("failed to persist room", zap.String("room_id", room.ID), zap.Error(err))
	}
}

func (s *RoomService) syncCache(ctx context.Context, room *model.Room) {
	meta := &model.RoomMeta{
		ID:           room.ID,
		Name:         room.Name,
		GameType:     room.GameType,
		Visibility:   room.Visibility,
		Status:       room.Status,
		Capacity:     room.Capacity,
		Participants: len(room.Participants),
		HasPasskey:   room.HasPasskey(),
		CreatedAt:    room.CreatedAt,
	}
	if err := s.roomCache.SetMeta(ctx, meta); err != nil {
		s.log.Warn("failed to cache room", zap.String("room_id", room.ID), zap.Error(err))
	}
}

// view copies room into its client form so it can be serialized after the
// room lock is released.
func (s *RoomService) view(room *model.Room) *model.RoomView {
	participants := make([]*model.Participant, len(room.Participants))
	for i, p := range room.Participants {
		cp := *p
		participants[i] = &cp
	}
	v := &model.RoomView{
		ID:           room.ID,
		Name:         room.Name,
		Visibility:   room.Visibility,
		HasPasskey:   room.HasPasskey(),
		HostID:       room.HostID,
		Participants: participants,
		Capacity:     room.Capacity,
		Status:       room.Status,
		GameType:     room.GameType,
		CreatedAt:    room.CreatedAt,
		StartedAt:    room.StartedAt,
	}
	if room.Status != model.RoomWaiting && room.GameState != nil {
		if engine, ok := s.engines[room.GameType]; ok {
			v.Game = engine.PublicState(room)
		}
	}
	return v
}

// generateRoomID creates a 6-char alphanumeric code
func (s *RoomService) generateRoomID(ctx context.Context) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const codeLen = 6

	for attempts := 0; attempts < 10; attempts++ {
		b := make([]byte, codeLen)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}

		code := make([]byte, codeLen)
		for i := range code {
			code[i] = chars[int(b[i])%len(chars)]
		}
		id := string(code)

		if s.live(id) != nil {
			continue
		}
		exists, err := s.roomCache.Exists(ctx, id)
		if err != nil {
			s.log.Warn("room directory unavailable for id check", zap.Error(err))
			return id, nil
		}
		if !exists {
			return id, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique room id")
}
