package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PlayerRepo reads player profiles and maintains their stats. Profiles are
// owned by the account service; this repo only touches the fields below.
type PlayerRepo interface {
	GetByID(ctx context.Context, id string) (*model.PlayerProfile, error)
	Touch(ctx context.Context, identity model.PlayerIdentity) error
	IncrementStats(ctx context.Context, id string, delta model.StatsDelta) error
}

type playerRepo struct {
	collection *mongo.Collection
}

func NewPlayerRepo(client *mongo.Client, dbName string) PlayerRepo {
	db := client.Database(dbName)
	return &playerRepo{
		collection: db.Collection("players"),
	}
}

func (r *playerRepo) GetByID(ctx context.Context, id string) (*model.PlayerProfile, error) {
	var player model.PlayerProfile
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&player)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // Player not found
		}
		return nil, err
	}
	return &player, nil
}

// Touch upserts the display fields presented at connection time.
func (r *playerRepo) Touch(ctx context.Context, identity model.PlayerIdentity) error {
	_, err := r.collection.UpdateByID(ctx, identity.ID, bson.M{
		"$set": bson.M{
			"displayName": identity.DisplayName,
			"avatarUrl":   identity.AvatarURL,
			"updatedAt":   time.Now(),
		},
	}, options.Update().SetUpsert(true))
	return err
}

func (r *playerRepo) IncrementStats(ctx context.Context, id string, delta model.StatsDelta) error {
	_, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{
			"stats.gamesPlayed": delta.GamesPlayed,
			"stats.wins":        delta.Wins,
			"stats.points":      delta.Points,
		},
		"$set": bson.M{"updatedAt": time.Now()},
	}, options.Update().SetUpsert(true))
	return err
}
