package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isCode(code apperrors.Code) error {
	return apperrors.New(code, "")
}

func TestCreate_ValidatesSettings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   service.CreateRoomInput
		code apperrors.Code
	}{
		{"unknown game", service.CreateRoomInput{GameType: "chess"}, apperrors.CodeRoomInvalidSettings},
		{"roles needs four", service.CreateRoomInput{GameType: model.GameRoles, Capacity: 3}, apperrors.CodeRoomInvalidSettings},
		{"cards too many", service.CreateRoomInput{GameType: model.GameCards, Capacity: 11}, apperrors.CodeRoomInvalidSettings},
		{"bad visibility", service.CreateRoomInput{GameType: model.GameCards, Visibility: "hidden"}, apperrors.CodeRoomInvalidSettings},
		{"long name", service.CreateRoomInput{GameType: model.GameCards, Name: strings.Repeat("x", 61)}, apperrors.CodeRoomInvalidSettings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.rooms.Create(ctx, h.connect("host"), tt.in)
			assert.ErrorIs(t, err, isCode(tt.code))
		})
	}

	view, err := h.rooms.Create(ctx, h.connect("host"), service.CreateRoomInput{GameType: model.GameRoles})
	require.NoError(t, err)
	assert.Equal(t, 4, view.Capacity)
	assert.Equal(t, "Player host's room", view.Name)
	assert.Equal(t, model.RoomWaiting, view.Status)
	require.Len(t, view.Participants, 1)
	assert.True(t, view.Participants[0].Connected)
	assert.True(t, h.reg.RoomTimerArmed(view.ID, model.ReasonTimeoutNoStart))
	assert.True(t, h.reg.RoomTimerArmed(view.ID, model.ReasonMaxDuration))

	_, err = h.rooms.Create(ctx, h.connect("host"), service.CreateRoomInput{GameType: model.GameCards})
	assert.ErrorIs(t, err, isCode(apperrors.CodeAlreadyInRoom), "one room per identity")
}

func TestJoin_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	roomID := h.fillRoom(t, model.GameRoles, "p1", "p2", "p3", "p4")

	err := h.rooms.Join(ctx, h.connect("p5"), roomID, "")
	assert.ErrorIs(t, err, isCode(apperrors.CodeRoomFull))

	err = h.rooms.Join(ctx, h.connect("p5"), "NOPE42", "")
	assert.ErrorIs(t, err, isCode(apperrors.CodeRoomNotFound))

	private, err := h.rooms.Create(ctx, h.connect("q1"), service.CreateRoomInput{
		GameType:   model.GameCards,
		Visibility: model.VisibilityPrivate,
		Passkey:    "hunter2",
	})
	require.NoError(t, err)
	assert.True(t, private.HasPasskey)

	err = h.rooms.Join(ctx, h.connect("q2"), private.ID, "wrong")
	assert.ErrorIs(t, err, isCode(apperrors.CodePasskeyMismatch))
	require.NoError(t, h.rooms.Join(ctx, h.connect("q2"), private.ID, "hunter2"))

	open, err := h.rooms.Create(ctx, h.connect("q3"), service.CreateRoomInput{GameType: model.GameCards})
	require.NoError(t, err)
	err = h.rooms.Join(ctx, h.connect("q2"), open.ID, "")
	assert.ErrorIs(t, err, isCode(apperrors.CodeAlreadyInRoom))

	stored, err := h.roomRepo.GetByID(ctx, private.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasskeyHash, "default reads exclude the passkey")
	hash := h.roomRepo.raw(private.ID).PasskeyHash
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "hunter2", hash, "passkey is stored hashed")
}

func TestJoin_ExistingParticipantDoesNotCountAgainstCapacity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	roomID := h.fillRoom(t, model.GameRoles, "p1", "p2", "p3", "p4")

	require.NoError(t, h.rooms.Join(ctx, h.connect("p3"), roomID, ""))
	view, err := h.rooms.Get(ctx, roomID)
	require.NoError(t, err)
	assert.Len(t, view.Participants, 4)
}

func TestStart_Preconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, err := h.rooms.Create(ctx, h.connect("p1"), service.CreateRoomInput{GameType: model.GameRoles})
	require.NoError(t, err)
	roomID := view.ID
	require.NoError(t, h.rooms.Join(ctx, h.connect("p2"), roomID, ""))
	require.NoError(t, h.rooms.Join(ctx, h.connect("p3"), roomID, ""))

	err = h.rooms.Start(ctx, "p1", roomID, model.GameRoles)
	assert.ErrorIs(t, err, isCode(apperrors.CodeNotEnoughPlayers))

	require.NoError(t, h.rooms.Join(ctx, h.connect("p4"), roomID, ""))
	err = h.rooms.Start(ctx, "p1", roomID, model.GameRoles)
	assert.ErrorIs(t, err, isCode(apperrors.CodePlayersNotReady))

	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		require.NoError(t, h.rooms.SetReady(ctx, id, roomID, true))
	}
	err = h.rooms.Start(ctx, "p2", roomID, model.GameRoles)
	assert.ErrorIs(t, err, isCode(apperrors.CodeNotHost))

	err = h.rooms.Start(ctx, "p1", roomID, model.GameCards)
	assert.ErrorIs(t, err, isCode(apperrors.CodeWrongGameType))

	err = h.rooms.Start(ctx, "p9", roomID, model.GameRoles)
	assert.ErrorIs(t, err, isCode(apperrors.CodeNotInRoom))

	require.NoError(t, h.rooms.Start(ctx, "p1", roomID, model.GameRoles))
	assert.Equal(t, model.RoomPlaying, h.status(t, roomID))
	assert.False(t, h.reg.RoomTimerArmed(roomID, model.ReasonTimeoutNoStart), "no-start timer canceled on start")
	assert.True(t, h.reg.RoomTimerArmed(roomID, model.ReasonMaxDuration))
	assert.Len(t, h.sink.of(model.MsgRoundStarted), 1)
	assert.Equal(t, roomID, h.matches.only(t).RoomID)

	err = h.rooms.Join(ctx, h.connect("p5"), roomID, "")
	assert.ErrorIs(t, err, isCode(apperrors.CodeRoomNotWaiting))
	err = h.rooms.SetReady(ctx, "p2", roomID, false)
	assert.ErrorIs(t, err, isCode(apperrors.CodeRoomNotWaiting))
}

func TestNoStartTimeout_DisbandsWaitingRoom(t *testing.T) {
	h := newHarness(t)
	roomID := h.fillRoom(t, model.GameCards, "p1", "p2")

	h.clock.Advance(15 * time.Minute)

	eventually(t, func() bool { return len(h.sink.of(model.MsgRoomDisbanded)) == 1 }, "waiting room disbanded")
	assert.Equal(t, 0, h.rooms.Count())
	for _, id := range []string{"p1", "p2"} {
		msgs := h.sink.to(id, model.MsgRoomDisbanded)
		require.Len(t, msgs, 1, id)
		assert.Equal(t, model.ReasonTimeoutNoStart, msgs[0].Payload.(model.RoomDisbanded).Reason)
		_, bound := h.reg.CurrentRoom(id)
		assert.False(t, bound)
	}
	assert.False(t, h.reg.RoomTimerArmed(roomID, model.ReasonMaxDuration), "disband cancels every room timer")

	_, err := h.rooms.Get(context.Background(), roomID)
	assert.ErrorIs(t, err, isCode(apperrors.CodeRoomNotFound))
}

func TestNoStartTimeout_DoesNotAffectPlayingRoom(t *testing.T) {
	h := newHarness(t)
	roomID := h.startRoom(t, model.GameCards, "p1", "p2")

	h.clock.Advance(16 * time.Minute)

	assert.Equal(t, 1, h.rooms.Count())
	assert.Equal(t, model.RoomPlaying, h.status(t, roomID))
	assert.Empty(t, h.sink.of(model.MsgRoomDisbanded))
}

func TestMaxDuration_DisbandsRunningGame(t *testing.T) {
	h := newHarness(t)
	roomID := h.startRoom(t, model.GameRoles, "p1", "p2", "p3", "p4")

	h.clock.Advance(30 * time.Minute)

	eventually(t, func() bool { return len(h.sink.of(model.MsgRoomDisbanded)) == 1 }, "room disbanded")
	disband := h.sink.of(model.MsgRoomDisbanded)[0]
	assert.Equal(t, model.ReasonMaxDuration, disband.Payload.(model.RoomDisbanded).Reason)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3", "p4"}, disband.Recipients)

	finished := h.sink.of(model.MsgGameFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, model.ReasonMaxDuration, finished[0].Payload.(model.GameFinished).Reason)

	match := h.matches.only(t)
	assert.Equal(t, model.ReasonMaxDuration, match.Reason)
	assert.Equal(t, "p1", match.WinnerID, "all scores tie at zero, join order wins")
	assert.Equal(t, model.RoomFinished, h.status(t, roomID), "finished rooms stay in the store")
}

func TestDisconnect_GraceExpiryEndsGame(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	roomID := h.startRoom(t, model.GameRoles, "p1", "p2", "p3", "p4")

	h.rooms.Disconnect(ctx, "p2", "t-p2")
	require.Len(t, h.sink.of(model.MsgPlayerDisconnected), 1)
	assert.True(t, h.reg.HasReconnectTimer("p2"))

	view, err := h.rooms.Get(ctx, roomID)
	require.NoError(t, err)
	assert.False(t, view.Participants[1].Connected)

	h.clock.Advance(2 * time.Minute)

	eventually(t, func() bool { return len(h.sink.of(model.MsgGameFinished)) == 1 }, "game ends after grace")
	finished := h.sink.of(model.MsgGameFinished)[0].Payload.(model.GameFinished)
	assert.Equal(t, model.ReasonPlayerLeft, finished.Reason)
	assert.Equal(t, "p1", finished.WinnerID)
	assert.Len(t, finished.Standings, 4, "the disconnected player is ranked with the rest")

	eventually(t, func() bool { return len(h.sink.of(model.MsgPlayerLeft)) == 1 }, "player removed")
	view, err = h.rooms.Get(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, model.RoomFinished, view.Status)
	assert.Len(t, view.Participants, 3, "non-host departure leaves the room to the others")
	_, kept := h.reg.Snapshot("p2")
	assert.False(t, kept, "registry record dropped once grace expires")

	stats := h.players.stats("p1")
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Equal(t, 1, stats.Wins)
}

func TestDisconnect_HostGraceExpiryRemovesRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startRoom(t, model.GameCards, "p1", "p2", "p3")

	h.rooms.Disconnect(ctx, "p1", "t-p1")
	h.clock.Advance(2 * time.Minute)

	eventually(t, func() bool { return len(h.sink.of(model.MsgRoomDisbanded)) == 1 }, "room disbanded")
	assert.Equal(t, 0, h.rooms.Count())
	require.Len(t, h.sink.of(model.MsgGameFinished), 1)
	disband := h.sink.of(model.MsgRoomDisbanded)
	require.Len(t, disband, 1)
	assert.Equal(t, model.ReasonHostLeft, disband[0].Payload.(model.RoomDisbanded).Reason)
	assert.ElementsMatch(t, []string{"p2", "p3"}, disband[0].Recipients)
}

func TestDisconnect_StaleTransportIsIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fillRoom(t, model.GameCards, "p1", "p2")

	h.reg.Attach("p2", "t-p2-new")
	h.rooms.Disconnect(ctx, "p2", "t-p2")

	assert.Empty(t, h.sink.of(model.MsgPlayerDisconnected))
	assert.False(t, h.reg.HasReconnectTimer("p2"))
}

func TestReconnect_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	roomID := h.startRoom(t, model.GameCards, "p1", "p2")

	h.rooms.Disconnect(ctx, "p2", "t-p2")
	h.reg.Attach("p2", "t-p2-again")

	require.NoError(t, h.rooms.Reconnect(ctx, "p2", roomID))
	first, err := h.rooms.Get(ctx, roomID)
	require.NoError(t, err)
	require.NoError(t, h.rooms.Reconnect(ctx, "p2", roomID))
	second, err := h.rooms.Get(ctx, roomID)
	require.NoError(t, err)

	assert.Equal(t, first.Participants, second.Participants)
	assert.True(t, second.Participants[1].Connected)
	assert.Equal(t, "t-p2-again", second.Participants[1].TransportID)
	assert.Len(t, h.sink.of(model.MsgPlayerReconnected), 1, "reconnected is broadcast once")
	assert.Len(t, h.sink.to("p2", model.MsgUnoHand), 3, "hand dealt once and re-sent on each reconnect")
	assert.False(t, h.reg.HasReconnectTimer("p2"))

	h.clock.Advance(3 * time.Minute)
	assert.Equal(t, model.RoomPlaying, h.status(t, roomID), "canceled grace timer never fires")

	err = h.rooms.Reconnect(ctx, "stranger", roomID)
	assert.ErrorIs(t, err, isCode(apperrors.CodeNotInRoom))
}

func TestLeave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("host leaving disbands", func(t *testing.T) {
		roomID := h.fillRoom(t, model.GameCards, "a1", "a2", "a3")
		require.NoError(t, h.rooms.Leave(ctx, "a1", roomID))
		_, err := h.rooms.Get(ctx, roomID)
		assert.ErrorIs(t, err, isCode(apperrors.CodeRoomNotFound))
		for _, id := range []string{"a2", "a3"} {
			msgs := h.sink.to(id, model.MsgRoomDisbanded)
			require.Len(t, msgs, 1)
			assert.Equal(t, model.ReasonHostLeft, msgs[0].Payload.(model.RoomDisbanded).Reason)
		}
	})

	t.Run("guest leaving keeps the room", func(t *testing.T) {
		roomID := h.fillRoom(t, model.GameCards, "b1", "b2")
		require.NoError(t, h.rooms.Leave(ctx, "b2", roomID))
		view, err := h.rooms.Get(ctx, roomID)
		require.NoError(t, err)
		assert.Len(t, view.Participants, 1)
		_, bound := h.reg.CurrentRoom("b2")
		assert.False(t, bound)

		err = h.rooms.Leave(ctx, "b2", roomID)
		assert.ErrorIs(t, err, isCode(apperrors.CodeNotInRoom))
	})

	t.Run("leaving mid-game ends it", func(t *testing.T) {
		h.sink.reset()
		roomID := h.startRoom(t, model.GameCards, "c1", "c2", "c3")
		require.NoError(t, h.rooms.Leave(ctx, "c3", roomID))
		finished := h.sink.of(model.MsgGameFinished)
		require.Len(t, finished, 1)
		payload := finished[0].Payload.(model.GameFinished)
		assert.Equal(t, model.ReasonPlayerLeft, payload.Reason)
		assert.NotEqual(t, "c3", payload.WinnerID)
		assert.Equal(t, model.RoomFinished, h.status(t, roomID))
	})
}

func TestChat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	roomID := h.fillRoom(t, model.GameCards, "p1", "p2")

	err := h.rooms.Chat(ctx, "p1", roomID, "   ")
	assert.ErrorIs(t, err, isCode(apperrors.CodeEmptyMessage))

	err = h.rooms.Chat(ctx, "p9", roomID, "hi")
	assert.ErrorIs(t, err, isCode(apperrors.CodeNotInRoom))

	require.NoError(t, h.rooms.Chat(ctx, "p1", roomID, "  hello  "))
	require.NoError(t, h.rooms.Chat(ctx, "p2", roomID, strings.Repeat("é", 600)))

	msgs := h.sink.of(model.MsgNewMessage)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Payload.(model.ChatMessage).Message)
	assert.ElementsMatch(t, []string{"p1", "p2"}, msgs[0].Recipients)
	assert.Equal(t, 500, len([]rune(msgs[1].Payload.(model.ChatMessage).Message)))
}

func TestQuickMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.rooms.Create(ctx, h.connect("priv"), service.CreateRoomInput{
		GameType:   model.GameCards,
		Visibility: model.VisibilityPrivate,
	})
	require.NoError(t, err)

	first, err := h.rooms.QuickMatch(ctx, h.connect("q1"), model.GameCards)
	require.NoError(t, err)
	assert.Equal(t, "q1", first.HostID, "private rooms are skipped, so a new room is opened")

	second, err := h.rooms.QuickMatch(ctx, h.connect("q2"), model.GameCards)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Participants, 2)

	_, err = h.rooms.QuickMatch(ctx, h.connect("q2"), model.GameCards)
	assert.ErrorIs(t, err, isCode(apperrors.CodeAlreadyInRoom))
}

func TestShutdown_DisbandsEveryRoom(t *testing.T) {
	h := newHarness(t)
	h.fillRoom(t, model.GameCards, "p1", "p2")
	h.startRoom(t, model.GameCards, "p3", "p4")

	h.rooms.Shutdown(context.Background())

	assert.Equal(t, 0, h.rooms.Count())
	assert.Len(t, h.sink.of(model.MsgRoomDisbanded), 2)
	assert.Len(t, h.sink.of(model.MsgGameFinished), 1)
}
