package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "docplus:session:"

// redisClient is the part of redis.Cmdable the store needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisStore keeps snapshots in Redis so every server replica sees the same
// session state.
type RedisStore struct {
	client redisClient
}

func NewRedisStore(client redisClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisFromURL parses a redis:// or rediss:// URL and returns a client
// and a store over it. The caller closes the client.
func NewRedisFromURL(url string) (*redis.Client, *RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return client, NewRedisStore(client), nil
}

func (r *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return raw, nil
}

func (r *RedisStore) Save(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
