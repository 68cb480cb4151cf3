package anon

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps one hash per visitor so all of a visitor's keys expire
// together. The TTL is refreshed on every write.
type RedisStorage struct {
	rdb     *redis.Client
	visitor string
	ttl     time.Duration
}

// NewRedisStorage scopes storage to a visitor ID (device cookie value).
func NewRedisStorage(rdb *redis.Client, visitorID string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{rdb: rdb, visitor: visitorID, ttl: ttl}
}

func (s *RedisStorage) hashKey() string { return "anonstore:" + s.visitor }

func (s *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, s.hashKey(), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStorage) Set(ctx context.Context, key, value string) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.hashKey(), key, value)
	pipe.Expire(ctx, s.hashKey(), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	return s.rdb.HDel(ctx, s.hashKey(), key).Err()
}
