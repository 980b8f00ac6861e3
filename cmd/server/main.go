package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/cache"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/config"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/fault"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/game/cards"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/game/roles"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/logging"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/ratelimit"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/registry"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/repository"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/service"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/transport/rest"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/transport/ws"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("server exited")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer mongoClient.Disconnect(context.Background())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	log.Info("connected to MongoDB", zap.String("db", cfg.MongoDB))

	// Redis connection
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

	clock := clockwork.NewRealClock()

	// Initialize repositories
	roomRepo := repository.NewRoomRepo(mongoClient, cfg.MongoDB)
	matchRepo := repository.NewMatchRepo(mongoClient, cfg.MongoDB)
	playerRepo := repository.NewPlayerRepo(mongoClient, cfg.MongoDB)

	// Initialize caches
	roomCache := cache.NewRoomCache(rdb)
	leaderboard := cache.NewLeaderboardCache(rdb)

	// Session core
	reg := registry.New(clock, log.Named("registry"), cfg.Registry.TimerSafety)
	limiter := ratelimit.New(cfg.Limiter(), clock)
	guard := fault.New(cfg.Fault(), log.Named("fault"))

	// Initialize services
	seed := time.Now().UnixNano()
	recorder := service.NewMatchRecorder(matchRepo, playerRepo, leaderboard, log.Named("matches"))
	roomSvc := service.NewRoomService(cfg.RoomService(), clock, log.Named("rooms"), reg, roomRepo, roomCache, recorder)
	roleSvc := service.NewRoleGameService(roomSvc, roles.New(cfg.RoleEngine(), rand.New(rand.NewSource(seed))),
		recorder, clock, log.Named("roles"), cfg.Room.RoundPause)
	cardSvc := service.NewCardGameService(roomSvc, cards.New(rand.New(rand.NewSource(seed+1)), cfg.Cards.HandSize),
		log.Named("cards"))
	roomSvc.RegisterEngine(roleSvc)
	roomSvc.RegisterEngine(cardSvc)

	authSvc := service.NewAuthService(cfg.JWTSecret, playerRepo, clock, log.Named("auth"))
	playerSvc := service.NewPlayerService(playerRepo, leaderboard, reg, log.Named("players"))
	leaderboardSvc := service.NewLeaderboardService(leaderboard, playerRepo, log.Named("leaderboard"))

	// Inject broadcaster (hub implements service.Broadcaster)
	hub := ws.NewHub(reg, log.Named("ws"))
	roomSvc.SetBroadcaster(hub)

	dispatcher := ws.NewDispatcher(roomSvc, roleSvc, cardSvc, reg, limiter, guard, log.Named("dispatch"))
	wsHandler := ws.NewHandler(hub, authSvc, roomSvc, reg, dispatcher, log.Named("ws"))

	router := rest.NewRouter(&rest.Container{
		Auth:         authSvc,
		Rooms:        roomSvc,
		Profiles:     playerSvc,
		Leaderboards: leaderboardSvc,
		Limiter:      limiter,
		Guard:        guard,
		WS:           wsHandler.ServeWS,
		Stats: func() map[string]int {
			stats := reg.Stats()
			stats["rooms"] = roomSvc.Count()
			stats["connections"] = hub.Count()
			stats["rate_buckets"] = limiter.Len()
			return stats
		},
		CORSOrigins: cfg.CORSOrigins,
		Log:         log.Named("http"),
	})

	go reg.Run(ctx, cfg.Room.SweepInterval)
	go limiter.Run(ctx, cfg.Room.SweepInterval)
	go roomSvc.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	roomSvc.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
