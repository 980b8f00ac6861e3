// Package ratelimit enforces a per-identity token bucket where each inbound
// event type has its own cost.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Config tunes the limiter.
type Config struct {
	Capacity        int           // bucket size, the largest burst
	RefillPerSecond float64       // tokens added per second
	Retention       time.Duration // idle buckets older than this are purged
	Costs           map[string]int
}

// DefaultCosts charges state-mutating events more than chat and reads.
// Unlisted events cost 1.
func DefaultCosts() map[string]int {
	return map[string]int{
		"join_room":           5,
		"leave_room":          2,
		"player_ready":        2,
		"start_round":         5,
		"shuffle_roles":       5,
		"guess_chor":          5,
		"send_message":        2,
		"request_reconnect":   3,
		"uno:start_game":      5,
		"uno:play_card":       3,
		"uno:draw_card":       3,
		"uno:call_uno":        2,
		"uno:challenge_draw4": 3,
		"uno:catch_player":    3,
		"create_room":         5,
		"quick_match":         5,
	}
}

// DefaultConfig matches the production defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:        50,
		RefillPerSecond: 10,
		Retention:       10 * time.Minute,
		Costs:           DefaultCosts(),
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one lazily created bucket per identity. Refill is computed
// from elapsed clock time on each call; nothing ticks for idle identities.
type Limiter struct {
	cfg   Config
	clock clockwork.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates a limiter.
func New(cfg Config, clock clockwork.Clock) *Limiter {
	if cfg.Costs == nil {
		cfg.Costs = map[string]int{}
	}
	return &Limiter{
		cfg:     cfg,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// Cost returns the token cost of event.
func (l *Limiter) Cost(event string) int {
	if c, ok := l.cfg.Costs[event]; ok && c > 0 {
		return c
	}
	return 1
}

// Allow consumes the cost of event from identity's bucket and reports
// whether the request may proceed.
func (l *Limiter) Allow(identity, event string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RefillPerSecond), l.cfg.Capacity)}
		l.buckets[identity] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, l.Cost(event))
}

// Tokens reports the tokens currently available to identity.
func (l *Limiter) Tokens(identity string) float64 {
	l.mu.Lock()
	b, ok := l.buckets[identity]
	l.mu.Unlock()
	if !ok {
		return float64(l.cfg.Capacity)
	}
	return b.limiter.TokensAt(l.clock.Now())
}

// Sweep purges buckets idle longer than the retention window and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	cutoff := l.clock.Now().Add(-l.cfg.Retention)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Run sweeps every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := l.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			l.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
