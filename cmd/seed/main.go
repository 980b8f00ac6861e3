// Command seed upserts demo player profiles and prints a signed token for
// each, so a local client can connect without the account service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/config"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/logging"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/repository"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/service"
	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const tokenTTL = 24 * time.Hour

var demoPlayers = []model.PlayerIdentity{
	{ID: "demo-raja", DisplayName: "Raja Ram"},
	{ID: "demo-mantri", DisplayName: "Mantri Meena"},
	{ID: "demo-sipahi", DisplayName: "Sipahi Sunil"},
	{ID: "demo-chor", DisplayName: "Chor Chintu"},
}

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	players := repository.NewPlayerRepo(client, cfg.MongoDB)
	auth := service.NewAuthService(cfg.JWTSecret, players, clockwork.NewRealClock(), log)

	for _, p := range demoPlayers {
		if err := players.Touch(ctx, p); err != nil {
			log.Fatal("failed to upsert player", zap.String("player_id", p.ID), zap.Error(err))
		}
		token, err := auth.IssueToken(p, tokenTTL)
		if err != nil {
			log.Fatal("failed to sign token", zap.String("player_id", p.ID), zap.Error(err))
		}
		fmt.Printf("%-12s %s\n", p.ID, token)
	}
	log.Info("seeded demo players", zap.Int("count", len(demoPlayers)))
}
