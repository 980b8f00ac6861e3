// Package fault contains handler failures: a panicking or failing handler is
// logged, reported to the player as a generic error, counted, and after
// repeated failures its event type is short-circuited by a breaker.
package fault

import (
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GenericMessage is the only text a client ever sees for a handler fault.
const GenericMessage = "Something went wrong, please try again"

// Config tunes the per-event breakers.
type Config struct {
	Threshold uint32        // failures within Window that open the breaker
	Window    time.Duration // failure counting window and open duration
}

// DefaultConfig opens after 5 failures within 60s.
func DefaultConfig() Config {
	return Config{Threshold: 5, Window: 60 * time.Second}
}

// Guard wraps event handlers. It is safe for concurrent use.
type Guard struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	failures map[string]uint64
}

// New creates a guard.
func New(cfg Config, log *zap.Logger) *Guard {
	return &Guard{
		cfg:      cfg,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		failures: make(map[string]uint64),
	}
}

func (g *Guard) breaker(event string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[event]; ok {
		return cb
	}
	threshold := g.cfg.Threshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        event,
		MaxRequests: 1,
		Interval:    g.cfg.Window,
		Timeout:     g.cfg.Window,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.TotalFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || apperrors.IsRejection(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn("event breaker state changed",
				zap.String("event", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	g.breakers[event] = cb
	return cb
}

// Do runs fn for event on behalf of playerID. Rejections from fn are returned
// unchanged. Panics and other errors are logged and replaced by a generic
// internal error. While the event's breaker is open fn is not called.
func (g *Guard) Do(event, playerID string, fn func() error) (err error) {
	_, err = g.breaker(event).Execute(func() (any, error) {
		return nil, g.call(event, playerID, fn)
	})
	if err == nil || apperrors.IsRejection(err) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.New(apperrors.CodeCircuitOpen, "This action is temporarily unavailable")
	}

	g.mu.Lock()
	g.failures[event]++
	g.mu.Unlock()

	g.log.Error("event handler failed",
		zap.String("event", event),
		zap.String("player_id", playerID),
		zap.Error(err))
	return apperrors.Wrap(apperrors.CodeInternal, GenericMessage, err)
}

func (g *Guard) call(event, playerID string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("event handler panicked",
				zap.String("event", event),
				zap.String("player_id", playerID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = fmt.Errorf("panic in %s: %v", event, r)
		}
	}()
	return fn()
}

// Failures returns the lifetime failure count for event.
func (g *Guard) Failures(event string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures[event]
}

// Open reports whether event is currently short-circuited.
func (g *Guard) Open(event string) bool {
	return g.breaker(event).State() == gobreaker.StateOpen
}

// ClientMessage returns the text safe to show the player for err.
func ClientMessage(err error) string {
	var e *apperrors.Error
	if errors.As(err, &e) && e.Code != apperrors.CodeInternal {
		return e.Message
	}
	return GenericMessage
}
