package repository

import (
	"context"
	"errors"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MatchRepo persists match history.
type MatchRepo interface {
	Create(ctx context.Context, match *model.Match) error
	GetByID(ctx context.Context, id string) (*model.Match, error)
	AppendRound(ctx context.Context, matchID string, round model.RoundRecord) error
	Finalize(ctx context.Context, matchID string, result model.MatchResult) error
}

type matchRepo struct {
	collection *mongo.Collection
}

func NewMatchRepo(client *mongo.Client, dbName string) MatchRepo {
	db := client.Database(dbName)
	return &matchRepo{
		collection: db.Collection("matches"),
	}
}

func (r *matchRepo) Create(ctx context.Context, match *model.Match) error {
	if match.Rounds == nil {
		match.Rounds = []model.RoundRecord{}
	}
	_, err := r.collection.InsertOne(ctx, match)
	return err
}

func (r *matchRepo) GetByID(ctx context.Context, id string) (*model.Match, error) {
	var match model.Match
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&match)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &match, nil
}

func (r *matchRepo) AppendRound(ctx context.Context, matchID string, round model.RoundRecord) error {
	_, err := r.collection.UpdateByID(ctx, matchID, bson.M{
		"$push": bson.M{"rounds": round},
	})
	return err
}

func (r *matchRepo) Finalize(ctx context.Context, matchID string, result model.MatchResult) error {
	_, err := r.collection.UpdateByID(ctx, matchID, bson.M{
		"$set": bson.M{
			"standings": result.Standings,
			"winnerId":  result.WinnerID,
			"reason":    result.Reason,
			"endedAt":   result.EndedAt,
		},
	})
	return err
}
