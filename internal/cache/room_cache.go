package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	"github.com/redis/go-redis/v9"
)

// RoomCache is the Redis directory of live rooms. Rooms a stranger could
// quick-match into are also indexed in a per-game sorted set, oldest first.
type RoomCache interface {
	SetMeta(ctx context.Context, meta *model.RoomMeta) error
	GetMeta(ctx context.Context, id string) (*model.RoomMeta, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	ListOpen(ctx context.Context, gameType model.GameType, limit int) ([]string, error)
}

type roomCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoomCache creates a new room cache
func NewRoomCache(client *redis.Client) RoomCache {
	return &roomCache{
		client: client,
		ttl:    time.Hour, // outlives the max room duration
	}
}

func (c *roomCache) key(id string) string {
	return fmt.Sprintf("room:%s", id)
}

func (c *roomCache) openKey(gameType model.GameType) string {
	return fmt.Sprintf("rooms:open:%s", gameType)
}

func (c *roomCache) SetMeta(ctx context.Context, meta *model.RoomMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.key(meta.ID), data, c.ttl)
	if meta.Open() {
		pipe.ZAdd(ctx, c.openKey(meta.GameType), redis.Z{
			Score:  float64(meta.CreatedAt.UnixMilli()),
			Member: meta.ID,
		})
	} else {
		pipe.ZRem(ctx, c.openKey(meta.GameType), meta.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (c *roomCache) GetMeta(ctx context.Context, id string) (*model.RoomMeta, error) {
	data, err := c.client.Get(ctx, c.key(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta model.RoomMeta
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *roomCache) Delete(ctx context.Context, id string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.key(id))
	for _, g := range []model.GameType{model.GameRoles, model.GameCards} {
		pipe.ZRem(ctx, c.openKey(g), id)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *roomCache) Exists(ctx context.Context, id string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(id)).Result()
	return n > 0, err
}

func (c *roomCache) ListOpen(ctx context.Context, gameType model.GameType, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	return c.client.ZRange(ctx, c.openKey(gameType), 0, int64(limit-1)).Result()
}
