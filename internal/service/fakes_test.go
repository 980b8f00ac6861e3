package service_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/cache"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/game/cards"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/game/roles"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/registry"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/service"
	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memRooms struct {
	mu    sync.Mutex
	rooms map[string]model.Room
}

func (m *memRooms) Create(_ context.Context, room *model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = *room
	return nil
}

func (m *memRooms) GetByID(_ context.Context, id string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	room.PasskeyHash = ""
	room.GameState = nil
	return &room, nil
}

// raw returns the stored document without the read projection.
func (m *memRooms) raw(id string) model.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[id]
}

func (m *memRooms) Update(_ context.Context, room *model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = *room
	return nil
}

func (m *memRooms) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	return nil
}

type memMatches struct {
	mu      sync.Mutex
	matches map[string]*model.Match
}

func (m *memMatches) Create(_ context.Context, match *model.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *match
	m.matches[match.ID] = &cp
	return nil
}

func (m *memMatches) GetByID(_ context.Context, id string) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *match
	return &cp, nil
}

func (m *memMatches) AppendRound(_ context.Context, matchID string, round model.RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match, ok := m.matches[matchID]; ok {
		match.Rounds = append(match.Rounds, round)
	}
	return nil
}

func (m *memMatches) Finalize(_ context.Context, matchID string, result model.MatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match, ok := m.matches[matchID]; ok {
		match.Standings = result.Standings
		match.WinnerID = result.WinnerID
		match.Reason = result.Reason
		match.EndedAt = &result.EndedAt
	}
	return nil
}

func (m *memMatches) only(t *testing.T) model.Match {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.matches, 1)
	for _, match := range m.matches {
		return *match
	}
	return model.Match{}
}

type memPlayers struct {
	mu       sync.Mutex
	profiles map[string]*model.PlayerProfile
}

func (m *memPlayers) GetByID(_ context.Context, id string) (*model.PlayerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPlayers) Touch(_ context.Context, identity model.PlayerIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[identity.ID]
	if !ok {
		p = &model.PlayerProfile{ID: identity.ID}
		m.profiles[identity.ID] = p
	}
	p.DisplayName = identity.DisplayName
	p.AvatarURL = identity.AvatarURL
	return nil
}

func (m *memPlayers) IncrementStats(_ context.Context, id string, delta model.StatsDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		p = &model.PlayerProfile{ID: id}
		m.profiles[id] = p
	}
	p.Stats.GamesPlayed += delta.GamesPlayed
	p.Stats.Wins += delta.Wins
	p.Stats.Points += delta.Points
	return nil
}

func (m *memPlayers) stats(id string) model.PlayerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[id]; ok {
		return p.Stats
	}
	return model.PlayerStats{}
}

// sink records every delivered message.
type sink struct {
	mu   sync.Mutex
	msgs []model.Outbound
}

func (s *sink) Deliver(msgs ...model.Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msgs...)
}

func (s *sink) of(msgType string) []model.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Outbound
	for _, m := range s.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// to returns messages of msgType whose recipients include playerID.
func (s *sink) to(playerID, msgType string) []model.Outbound {
	var out []model.Outbound
	for _, m := range s.of(msgType) {
		for _, r := range m.Recipients {
			if r == playerID {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func (s *sink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
}

type harness struct {
	clock       *clockwork.FakeClock
	reg         *registry.Registry
	rooms       *service.RoomService
	roles       *service.RoleGameService
	cards       *service.CardGameService
	auth        *service.AuthService
	sink        *sink
	roomRepo    *memRooms
	matches     *memMatches
	players     *memPlayers
	leaderboard cache.LeaderboardCache
	roomCache   cache.RoomCache
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	h := &harness{
		clock:       clock,
		reg:         registry.New(clock, log, 10*time.Minute),
		sink:        &sink{},
		roomRepo:    &memRooms{rooms: map[string]model.Room{}},
		matches:     &memMatches{matches: map[string]*model.Match{}},
		players:     &memPlayers{profiles: map[string]*model.PlayerProfile{}},
		leaderboard: cache.NewLeaderboardCache(client),
		roomCache:   cache.NewRoomCache(client),
	}
	recorder := service.NewMatchRecorder(h.matches, h.players, h.leaderboard, log)
	h.rooms = service.NewRoomService(service.DefaultRoomConfig(), clock, log, h.reg, h.roomRepo, h.roomCache, recorder)
	h.roles = service.NewRoleGameService(h.rooms, roles.New(roles.DefaultConfig(), rand.New(rand.NewSource(7))),
		recorder, clock, log, 5*time.Second)
	h.cards = service.NewCardGameService(h.rooms, cards.New(rand.New(rand.NewSource(7)), cards.DefaultHandSize), log)
	h.rooms.RegisterEngine(h.roles)
	h.rooms.RegisterEngine(h.cards)
	h.rooms.SetBroadcaster(h.sink)
	h.auth = service.NewAuthService("test-secret", h.players, clock, log)
	return h
}

// connect attaches a live transport for id and returns its identity.
func (h *harness) connect(id string) model.PlayerIdentity {
	h.reg.Attach(id, "t-"+id)
	return model.PlayerIdentity{ID: id, DisplayName: "Player " + id}
}

// fillRoom creates a room hosted by the first id and joins the rest.
func (h *harness) fillRoom(t *testing.T, gameType model.GameType, ids ...string) string {
	t.Helper()
	ctx := context.Background()
	view, err := h.rooms.Create(ctx, h.connect(ids[0]), service.CreateRoomInput{
		Name:     "table",
		GameType: gameType,
		Capacity: len(ids),
	})
	require.NoError(t, err)
	for _, id := range ids[1:] {
		require.NoError(t, h.rooms.Join(ctx, h.connect(id), view.ID, ""))
	}
	return view.ID
}

// startRoom fills, readies and starts a room.
func (h *harness) startRoom(t *testing.T, gameType model.GameType, ids ...string) string {
	t.Helper()
	ctx := context.Background()
	roomID := h.fillRoom(t, gameType, ids...)
	for _, id := range ids {
		require.NoError(t, h.rooms.SetReady(ctx, id, roomID, true))
	}
	require.NoError(t, h.rooms.Start(ctx, ids[0], roomID, gameType))
	return roomID
}

func (h *harness) status(t *testing.T, roomID string) model.RoomStatus {
	t.Helper()
	view, err := h.rooms.Get(context.Background(), roomID)
	require.NoError(t, err)
	return view.Status
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}
