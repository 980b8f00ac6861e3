package ws_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/game/cards"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
)

// actions records every call and returns err for the next one.
type actions struct {
	mu    sync.Mutex
	calls []string
	err   error
	panic bool
}

func (a *actions) record(format string, args ...any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.panic {
		panic("boom")
	}
	a.calls = append(a.calls, fmt.Sprintf(format, args...))
	return a.err
}

func (a *actions) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *actions) Join(_ context.Context, player model.PlayerIdentity, roomID, passkey string) error {
	return a.record("join %s %s %s", player.ID, roomID, passkey)
}

func (a *actions) Leave(_ context.Context, playerID, roomID string) error {
	return a.record("leave %s %s", playerID, roomID)
}

func (a *actions) SetReady(_ context.Context, playerID, roomID string, ready bool) error {
	return a.record("ready %s %s %t", playerID, roomID, ready)
}

func (a *actions) Start(_ context.Context, playerID, roomID string, gameType model.GameType) error {
	return a.record("start %s %s %s", playerID, roomID, gameType)
}

func (a *actions) Chat(_ context.Context, playerID, roomID, text string) error {
	return a.record("chat %s %s %s", playerID, roomID, text)
}

func (a *actions) Reconnect(_ context.Context, playerID, roomID string) error {
	return a.record("reconnect %s %s", playerID, roomID)
}

func (a *actions) Shuffle(_ context.Context, playerID, roomID string) error {
	return a.record("shuffle %s %s", playerID, roomID)
}

func (a *actions) Guess(_ context.Context, playerID, roomID, accused string) error {
	return a.record("guess %s %s %s", playerID, roomID, accused)
}

func (a *actions) Play(_ context.Context, playerID, roomID string, cardID int, color cards.Color) error {
	return a.record("play %s %s %d %s", playerID, roomID, cardID, color)
}

func (a *actions) Draw(_ context.Context, playerID, roomID string) error {
	return a.record("draw %s %s", playerID, roomID)
}

func (a *actions) CallLastCard(_ context.Context, playerID, roomID string) error {
	return a.record("call %s %s", playerID, roomID)
}

func (a *actions) Challenge(_ context.Context, playerID, roomID string) error {
	return a.record("challenge %s %s", playerID, roomID)
}

func (a *actions) Catch(_ context.Context, playerID, roomID, targetID string) error {
	return a.record("catch %s %s %s", playerID, roomID, targetID)
}

func (a *actions) Disconnect(_ context.Context, playerID, transportID string) {
	a.record("disconnect %s %s", playerID, transportID)
}
