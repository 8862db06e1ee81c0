package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/triage-ai/warden/internal/engine"
)

// ErrMiss is returned by a KV when the key does not exist.
var ErrMiss = errors.New("cache miss")

// KV is the minimal key/value surface used by the read-through caches.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// NewRedisClient connects to Redis and verifies connectivity.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}
	return rdb, nil
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	rdb *redis.Client
}

// NewRedisKV wraps rdb.
func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (k *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := k.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

func (k *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return k.rdb.Set(ctx, key, value, ttl).Err()
}

// StatsSource is the authoritative provider behind the stats cache.
type StatsSource interface {
	GetUserStats(ctx context.Context, userID string) (engine.UserStats, error)
}

// StatsCache is a read-through cache of user message counts. A Redis
// failure degrades to the source; only a source failure is returned.
type StatsCache struct {
	kv     KV
	source StatsSource
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatsCache creates a StatsCache. ttl defaults to one minute.
func NewStatsCache(kv KV, source StatsSource, ttl time.Duration, logger *zap.Logger) *StatsCache {
	if ttl == 0 {
		ttl = time.Minute
	}
	return &StatsCache{kv: kv, source: source, ttl: ttl, logger: logger}
}

func statsKey(userID string) string {
	return "warden:stats:" + userID + ":messages"
}

// GetUserStats returns the cached message count, falling back to the source
// on miss or cache error.
func (c *StatsCache) GetUserStats(ctx context.Context, userID string) (engine.UserStats, error) {
	key := statsKey(userID)

	raw, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			return engine.UserStats{MessageCount: n}, nil
		}
		c.logger.Warn("corrupt stats cache entry", zap.String("key", key))
	case !errors.Is(err, ErrMiss):
		c.logger.Warn("stats cache read failed, using source",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	st, err := c.source.GetUserStats(ctx, userID)
	if err != nil {
		return engine.UserStats{}, fmt.Errorf("StatsCache.GetUserStats: %w", err)
	}

	if err := c.kv.Set(ctx, key, strconv.Itoa(st.MessageCount), c.ttl); err != nil {
		c.logger.Warn("stats cache write failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	return st, nil
}
