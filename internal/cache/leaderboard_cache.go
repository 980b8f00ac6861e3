package cache

import (
	"context"
	"fmt"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	"github.com/redis/go-redis/v9"
)

// LeaderboardCache handles Redis ZSET operations for the per-game leaderboard
type LeaderboardCache interface {
	AddScore(ctx context.Context, gameType model.GameType, playerID string, delta int) error
	GetTop(ctx context.Context, gameType model.GameType, limit int) ([]LeaderboardEntry, error)
	GetRank(ctx context.Context, gameType model.GameType, playerID string) (int64, error)
}

// LeaderboardEntry represents a single leaderboard entry
type LeaderboardEntry struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName,omitempty"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"`
}

type leaderboardCache struct {
	client *redis.Client
}

// NewLeaderboardCache creates a new leaderboard cache
func NewLeaderboardCache(client *redis.Client) LeaderboardCache {
	return &leaderboardCache{
		client: client,
	}
}

func (c *leaderboardCache) key(gameType model.GameType) string {
	return fmt.Sprintf("lb:%s", gameType)
}

func (c *leaderboardCache) AddScore(ctx context.Context, gameType model.GameType, playerID string, delta int) error {
	return c.client.ZIncrBy(ctx, c.key(gameType), float64(delta), playerID).Err()
}

func (c *leaderboardCache) GetTop(ctx context.Context, gameType model.GameType, limit int) ([]LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(gameType), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(results))
	for i, z := range results {
		entries[i] = LeaderboardEntry{
			PlayerID: z.Member.(string),
			Score:    int(z.Score),
			Rank:     i + 1,
		}
	}
	return entries, nil
}

func (c *leaderboardCache) GetRank(ctx context.Context, gameType model.GameType, playerID string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, c.key(gameType), playerID).Result()
	if err == redis.Nil {
		return -1, nil
	}
	return rank + 1, err // 1-indexed
}
