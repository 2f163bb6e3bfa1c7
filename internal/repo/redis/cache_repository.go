package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KarpovAlexandrGo/taskboard/internal/entity"
)

const boardKeyPrefix = "taskboard:board:"

// CacheRepository keeps the last acknowledged board of each owner.
type CacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheRepository(client *redis.Client, ttl time.Duration) *CacheRepository {
	return &CacheRepository{client: client, ttl: ttl}
}

func boardKey(ownerID string) string {
	return boardKeyPrefix + ownerID
}

func (c *CacheRepository) SetBoard(ctx context.Context, ownerID string, board entity.Board) error {
	board.Stale = false
	data, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("failed to encode board: %w", err)
	}
	return c.client.Set(ctx, boardKey(ownerID), data, c.ttl).Err()
}

func (c *CacheRepository) GetBoard(ctx context.Context, ownerID string) (entity.Board, bool, error) {
	data, err := c.client.Get(ctx, boardKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.Board{}, false, nil
	} else if err != nil {
		return entity.Board{}, false, err
	}

	var board entity.Board
	if err := json.Unmarshal(data, &board); err != nil {
		return entity.Board{}, false, fmt.Errorf("failed to decode cached board: %w", err)
	}
	return board, true, nil
}

func (c *CacheRepository) Invalidate(ctx context.Context, ownerID string) error {
	return c.client.Del(ctx, boardKey(ownerID)).Err()
}

// Ping checks the Redis connection.
func (c *CacheRepository) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
