// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/fault"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/game/roles"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/ratelimit"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/service"
	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB     string `env:"MONGO_DB" envDefault:"chorsipahi"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	CORSOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	Log      LogConfig
	Room     RoomConfig
	Roles    RolesConfig
	Cards    CardsConfig
	Rate     RateConfig
	Breaker  BreakerConfig
	Registry RegistryConfig
}

// LogConfig selects the zap preset and level.
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	Dev   bool   `env:"LOG_DEV" envDefault:"false"`
}

// RoomConfig holds room lifecycle timings.
type RoomConfig struct {
	NoStartTimeout time.Duration `env:"ROOM_NO_START_TIMEOUT" envDefault:"15m"`
	MaxDuration    time.Duration `env:"ROOM_MAX_DURATION" envDefault:"30m"`
	ReconnectGrace time.Duration `env:"ROOM_RECONNECT_GRACE" envDefault:"2m"`
	RoundPause     time.Duration `env:"ROOM_ROUND_PAUSE" envDefault:"5s"`
	SweepInterval  time.Duration `env:"ROOM_SWEEP_INTERVAL" envDefault:"1m"`
}

// RolesConfig holds the round count and the points table. Points map each
// role to "correct/wrong", the score for a right and a wrong accusation.
type RolesConfig struct {
	TotalRounds int               `env:"ROLES_TOTAL_ROUNDS" envDefault:"5"`
	Points      map[string]string `env:"ROLES_POINTS" envDefault:"Raja:1000/1000,Mantri:800/800,Sipahi:500/0,Chor:0/500"`

	table map[roles.Role]roles.Points
}

type CardsConfig struct {
	HandSize int `env:"CARDS_HAND_SIZE" envDefault:"7"`
}

// RateConfig tunes the per-identity token bucket.
type RateConfig struct {
	Capacity        int           `env:"RATE_CAPACITY" envDefault:"50"`
	RefillPerSecond float64       `env:"RATE_REFILL_PER_SEC" envDefault:"10"`
	Retention       time.Duration `env:"RATE_RETENTION" envDefault:"10m"`
}

type BreakerConfig struct {
	Threshold uint32        `env:"BREAKER_THRESHOLD" envDefault:"5"`
	Window    time.Duration `env:"BREAKER_WINDOW" envDefault:"60s"`
}

type RegistryConfig struct {
	TimerSafety time.Duration `env:"REGISTRY_TIMER_SAFETY" envDefault:"10m"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engines cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Roles.TotalRounds < 1:
		return fmt.Errorf("ROLES_TOTAL_ROUNDS must be at least 1")
	case c.Cards.HandSize < 1:
		return fmt.Errorf("CARDS_HAND_SIZE must be at least 1")
	case c.Rate.Capacity < 1 || c.Rate.RefillPerSecond <= 0:
		return fmt.Errorf("RATE_CAPACITY and RATE_REFILL_PER_SEC must be positive")
	case c.Breaker.Threshold < 1:
		return fmt.Errorf("BREAKER_THRESHOLD must be at least 1")
	case c.Room.SweepInterval <= 0:
		return fmt.Errorf("ROOM_SWEEP_INTERVAL must be positive")
	}
	table, err := parsePoints(c.Roles.Points)
	if err != nil {
		return fmt.Errorf("ROLES_POINTS: %w", err)
	}
	c.Roles.table = table
	return nil
}

func parsePoints(raw map[string]string) (map[roles.Role]roles.Points, error) {
	table := make(map[roles.Role]roles.Points, len(roles.All))
	for name, value := range raw {
		role := roles.Role(strings.TrimSpace(name))
		if !slices.Contains(roles.All, role) {
			return nil, fmt.Errorf("unknown role %q", name)
		}
		correct, wrong, ok := strings.Cut(value, "/")
		if !ok {
			return nil, fmt.Errorf("%s: want correct/wrong, got %q", role, value)
		}
		var p roles.Points
		var err error
		if p.Correct, err = strconv.Atoi(strings.TrimSpace(correct)); err != nil {
			return nil, fmt.Errorf("%s: %w", role, err)
		}
		if p.Wrong, err = strconv.Atoi(strings.TrimSpace(wrong)); err != nil {
			return nil, fmt.Errorf("%s: %w", role, err)
		}
		table[role] = p
	}
	for _, role := range roles.All {
		if _, ok := table[role]; !ok {
			return nil, fmt.Errorf("missing role %s", role)
		}
	}
	return table, nil
}

// RoomService returns the room lifecycle timings.
func (c *Config) RoomService() service.RoomConfig {
	return service.RoomConfig{
		NoStartTimeout: c.Room.NoStartTimeout,
		MaxDuration:    c.Room.MaxDuration,
		ReconnectGrace: c.Room.ReconnectGrace,
		SweepInterval:  c.Room.SweepInterval,
	}
}

// Limiter returns the rate limiter settings with the default event costs.
func (c *Config) Limiter() ratelimit.Config {
	return ratelimit.Config{
		Capacity:        c.Rate.Capacity,
		RefillPerSecond: c.Rate.RefillPerSecond,
		Retention:       c.Rate.Retention,
		Costs:           ratelimit.DefaultCosts(),
	}
}

// Fault returns the breaker settings.
func (c *Config) Fault() fault.Config {
	return fault.Config{Threshold: c.Breaker.Threshold, Window: c.Breaker.Window}
}

// RoleEngine returns the configured round count and points table.
func (c *Config) RoleEngine() roles.Config {
	rc := roles.DefaultConfig()
	rc.TotalRounds = c.Roles.TotalRounds
	if c.Roles.table != nil {
		rc.Table = c.Roles.table
	}
	return rc
}
