package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/fault"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/ratelimit"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/registry"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/transport/ws"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var alice = model.PlayerIdentity{ID: "alice", DisplayName: "Alice"}

type dispatchFixture struct {
	clock    *clockwork.FakeClock
	reg      *registry.Registry
	limiter  *ratelimit.Limiter
	guard    *fault.Guard
	actions  *actions
	dispatch *ws.Dispatcher
}

func newDispatchFixture(limits ratelimit.Config) *dispatchFixture {
	clock := clockwork.NewFakeClock()
	log := zap.NewNop()
	f := &dispatchFixture{
		clock:   clock,
		reg:     registry.New(clock, log, 10*time.Minute),
		limiter: ratelimit.New(limits, clock),
		guard:   fault.New(fault.Config{Threshold: 3, Window: time.Minute}, log),
		actions: &actions{},
	}
	f.dispatch = ws.NewDispatcher(f.actions, f.actions, f.actions, f.reg, f.limiter, f.guard, log)
	return f
}

func envelope(eventType, payload string) model.Envelope {
	env := model.Envelope{Type: eventType}
	if payload != "" {
		env.Payload = json.RawMessage(payload)
	}
	return env
}

func errorPayload(t *testing.T, out *model.Outbound) model.ErrorPayload {
	t.Helper()
	require.NotNil(t, out)
	assert.Equal(t, []string{alice.ID}, out.Recipients)
	p, ok := out.Payload.(model.ErrorPayload)
	require.True(t, ok)
	return p
}

func TestDispatch_RoutesEvents(t *testing.T) {
	f := newDispatchFixture(ratelimit.DefaultConfig())
	ctx := context.Background()

	events := []struct {
		env  model.Envelope
		want string
	}{
		{envelope(model.EvJoinRoom, `{"roomId":"R1","passkey":"pw"}`), "join alice R1 pw"},
		{envelope(model.EvPlayerReady, `{"roomId":"R1","isReady":true}`), "ready alice R1 true"},
		{envelope(model.EvStartRound, `{"roomId":"R1"}`), "start alice R1 roles"},
		{envelope(model.EvUnoStartGame, `{"roomId":"R1"}`), "start alice R1 uno"},
		{envelope(model.EvShuffleRoles, `{"roomId":"R1"}`), "shuffle alice R1"},
		{envelope(model.EvGuessChor, `{"roomId":"R1","guessedUserId":"bob"}`), "guess alice R1 bob"},
		{envelope(model.EvSendMessage, `{"roomId":"R1","message":"hi"}`), "chat alice R1 hi"},
		{envelope(model.EvUnoPlayCard, `{"roomId":"R1","cardId":0,"color":"red"}`), "play alice R1 0 red"},
		{envelope(model.EvUnoDrawCard, `{"roomId":"R1"}`), "draw alice R1"},
		{envelope(model.EvUnoCallUno, `{"roomId":"R1"}`), "call alice R1"},
		{envelope(model.EvUnoChallenge, `{"roomId":"R1"}`), "challenge alice R1"},
		{envelope(model.EvUnoCatchPlayer, `{"roomId":"R1","targetId":"bob"}`), "catch alice R1 bob"},
		{envelope(model.EvLeaveRoom, `{"roomId":"R1"}`), "leave alice R1"},
	}
	var want []string
	for _, e := range events {
		assert.Nil(t, f.dispatch.Dispatch(ctx, alice, e.env), e.env.Type)
		want = append(want, e.want)
	}
	assert.Equal(t, want, f.actions.recorded())
}

func TestDispatch_ReconnectFallsBackToBoundRoom(t *testing.T) {
	f := newDispatchFixture(ratelimit.DefaultConfig())
	ctx := context.Background()

	out := f.dispatch.Dispatch(ctx, alice, envelope(model.EvRequestReconnect, ""))
	assert.Equal(t, string(apperrors.CodeNotInRoom), errorPayload(t, out).Code)

	f.reg.BindRoom(alice.ID, "R7")
	assert.Nil(t, f.dispatch.Dispatch(ctx, alice, envelope(model.EvRequestReconnect, "")))
	assert.Nil(t, f.dispatch.Dispatch(ctx, alice, envelope(model.EvRequestReconnect, `{"roomId":"R8"}`)))
	assert.Equal(t, []string{"reconnect alice R7", "reconnect alice R8"}, f.actions.recorded())
}

func TestDispatch_InvalidPayloads(t *testing.T) {
	f := newDispatchFixture(ratelimit.DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		env  model.Envelope
		code apperrors.Code
	}{
		{"unknown event", envelope("dance", `{}`), apperrors.CodeUnknownEvent},
		{"missing payload", envelope(model.EvJoinRoom, ""), apperrors.CodeInvalidPayload},
		{"malformed json", envelope(model.EvJoinRoom, `{"roomId":`), apperrors.CodeInvalidPayload},
		{"wrong type", envelope(model.EvPlayerReady, `{"roomId":"R1","isReady":"yes"}`), apperrors.CodeInvalidPayload},
		{"missing room", envelope(model.EvShuffleRoles, `{"roomId":"  "}`), apperrors.CodeInvalidPayload},
		{"missing card", envelope(model.EvUnoPlayCard, `{"roomId":"R1"}`), apperrors.CodeInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.dispatch.Dispatch(ctx, alice, tt.env)
			require.NotNil(t, out)
			assert.Equal(t, model.MsgError, out.Type)
			p := errorPayload(t, out)
			assert.Equal(t, string(tt.code), p.Code)
			assert.Equal(t, tt.env.Type, p.Event)
		})
	}
	assert.Empty(t, f.actions.recorded())
	assert.False(t, f.guard.Open(model.EvJoinRoom), "payload rejections are not faults")
}

func TestDispatch_RejectionReachesSender(t *testing.T) {
	f := newDispatchFixture(ratelimit.DefaultConfig())
	f.actions.err = apperrors.New(apperrors.CodeRoomFull, "Room is full")

	out := f.dispatch.Dispatch(context.Background(), alice, envelope(model.EvJoinRoom, `{"roomId":"R1"}`))
	p := errorPayload(t, out)
	assert.Equal(t, model.MsgError, out.Type)
	assert.Equal(t, string(apperrors.CodeRoomFull), p.Code)
	assert.Equal(t, "Room is full", p.Message)
}

func TestDispatch_RateLimit(t *testing.T) {
	f := newDispatchFixture(ratelimit.Config{
		Capacity:        10,
		RefillPerSecond: 1,
		Retention:       time.Minute,
		Costs:           map[string]int{model.EvJoinRoom: 5},
	})
	ctx := context.Background()
	join := envelope(model.EvJoinRoom, `{"roomId":"R1"}`)

	assert.Nil(t, f.dispatch.Dispatch(ctx, alice, join))
	assert.Nil(t, f.dispatch.Dispatch(ctx, alice, join))

	out := f.dispatch.Dispatch(ctx, alice, join)
	require.NotNil(t, out)
	assert.Equal(t, model.MsgRateLimitExceeded, out.Type)
	assert.Equal(t, string(apperrors.CodeRateLimited), errorPayload(t, out).Code)
	assert.Len(t, f.actions.recorded(), 2, "limited events never reach the handler")

	f.clock.Advance(5 * time.Second)
	assert.Nil(t, f.dispatch.Dispatch(ctx, alice, join))
}

func TestDispatch_FaultsAreContained(t *testing.T) {
	f := newDispatchFixture(ratelimit.DefaultConfig())
	ctx := context.Background()
	draw := envelope(model.EvUnoDrawCard, `{"roomId":"R1"}`)

	f.actions.err = errors.New("mongo: connection refused")
	p := errorPayload(t, f.dispatch.Dispatch(ctx, alice, draw))
	assert.Equal(t, string(apperrors.CodeInternal), p.Code)
	assert.Equal(t, fault.GenericMessage, p.Message, "internal details never reach the client")

	f.actions.err = nil
	f.actions.panic = true
	p = errorPayload(t, f.dispatch.Dispatch(ctx, alice, draw))
	assert.Equal(t, string(apperrors.CodeInternal), p.Code)

	p = errorPayload(t, f.dispatch.Dispatch(ctx, alice, draw))
	assert.Equal(t, string(apperrors.CodeInternal), p.Code)
	assert.True(t, f.guard.Open(model.EvUnoDrawCard))

	f.actions.panic = false
	p = errorPayload(t, f.dispatch.Dispatch(ctx, alice, draw))
	assert.Equal(t, string(apperrors.CodeCircuitOpen), p.Code)

	assert.Nil(t, f.dispatch.Dispatch(ctx, alice, envelope(model.EvUnoCallUno, `{"roomId":"R1"}`)),
		"other events keep working")
}
