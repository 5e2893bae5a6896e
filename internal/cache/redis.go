package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/webmatcha/matcha-go/internal/config"
)

// NotifyChannel is the pub/sub channel realtime pushes fan out on, so
// instances other than the one handling the write can reach their
// connected clients.
const NotifyChannel = "matcha:notify"

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// --- like counter ---

// KeyForLikeCount generates the Redis key for a user's like count.
func (c *RedisCache) KeyForLikeCount(userID uint64) string {
	return fmt.Sprintf("likes:count:%d", userID)
}

func (c *RedisCache) IncrLikeCount(ctx context.Context, userID uint64) error {
	key := c.KeyForLikeCount(userID)
	if err := c.Client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return c.Client.Expire(ctx, key, time.Hour).Err()
}

func (c *RedisCache) DecrLikeCount(ctx context.Context, userID uint64) error {
	key := c.KeyForLikeCount(userID)
	if err := c.Client.Decr(ctx, key).Err(); err != nil {
		return err
	}
	return c.Client.Expire(ctx, key, time.Hour).Err()
}

func (c *RedisCache) GetLikeCount(ctx context.Context, userID uint64) (int64, bool, error) {
	val, err := c.Client.Get(ctx, c.KeyForLikeCount(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

func (c *RedisCache) SetLikeCount(ctx context.Context, userID uint64, count int64) error {
	return c.Client.Set(ctx, c.KeyForLikeCount(userID), count, time.Hour).Err()
}

// --- fame score ---

func (c *RedisCache) KeyForFame(userID uint64) string {
	return fmt.Sprintf("fame:score:%d", userID)
}

func (c *RedisCache) SetFame(ctx context.Context, userID uint64, score int) error {
	return c.Client.Set(ctx, c.KeyForFame(userID), score, time.Hour).Err()
}

func (c *RedisCache) GetFame(ctx context.Context, userID uint64) (int, bool, error) {
	val, err := c.Client.Get(ctx, c.KeyForFame(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// --- presence ---

const onlineSetKey = "presence:online"

// MarkOnline adds the user to the shared online set. The set is what a
// multi-instance deployment consults instead of the per-process hub map.
func (c *RedisCache) MarkOnline(ctx context.Context, userID uint64) error {
	return c.Client.SAdd(ctx, onlineSetKey, userID).Err()
}

func (c *RedisCache) MarkOffline(ctx context.Context, userID uint64) error {
	return c.Client.SRem(ctx, onlineSetKey, userID).Err()
}

func (c *RedisCache) IsOnline(ctx context.Context, userID uint64) (bool, error) {
	return c.Client.SIsMember(ctx, onlineSetKey, userID).Result()
}

// --- realtime fan-out ---

// PublishEvent marshals the payload and publishes it on NotifyChannel.
func (c *RedisCache) PublishEvent(ctx context.Context, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.Client.Publish(ctx, NotifyChannel, b).Err()
}

// SubscribeEvents returns a subscription on NotifyChannel.
func (c *RedisCache) SubscribeEvents(ctx context.Context) *redis.PubSub {
	return c.Client.Subscribe(ctx, NotifyChannel)
}
