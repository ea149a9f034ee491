package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the optional shared L2 tier. Expiry is delegated to the
// Redis server; insert-if-absent maps to SET NX.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig holds connection settings for the L2 tier.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies reachability.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	// Carry the server-side remaining TTL on the entry so a promotion
	// into the L1 tier inherits the expiry instead of resetting it.
	remaining, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return Entry{}, false, err
	}
	switch remaining {
	case -2:
		// Key expired between GET and TTL.
		return Entry{}, false, nil
	case -1:
		// No server-side expiry set.
		remaining = 0
	}
	return Entry{Value: value, CreatedAt: time.Now(), TTL: remaining}, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, entry Entry) error {
	return s.client.SetNX(ctx, key, entry.Value, entry.TTL).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Purge(ctx context.Context) error {
	return s.client.FlushDB(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
