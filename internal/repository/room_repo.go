package repository

import (
	"context"
	"errors"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RoomRepo stores Room documents keyed by room id. Default reads never
// return the passkey hash.
type RoomRepo interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	Update(ctx context.Context, room *model.Room) error
	Delete(ctx context.Context, id string) error
}

type roomRepo struct {
	collection *mongo.Collection
}

func NewRoomRepo(client *mongo.Client, dbName string) RoomRepo {
	db := client.Database(dbName)
	return &roomRepo{
		collection: db.Collection("rooms"),
	}
}

func (r *roomRepo) Create(ctx context.Context, room *model.Room) error {
	_, err := r.collection.InsertOne(ctx, room)
	return err
}

func (r *roomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	opts := options.FindOne().SetProjection(bson.M{"passkey": 0, "gameState": 0})

	var room model.Room
	err := r.collection.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // Room not found
		}
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) Update(ctx context.Context, room *model.Room) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": room.ID}, room)
	return err
}

func (r *roomRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
