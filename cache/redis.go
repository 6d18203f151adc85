package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// L2 is a Redis-backed cache layer. It reports Redis errors so that Tiered
// can feed them to its circuit breaker; a missing key is a miss, not an
// error. L2 is meant to sit behind Tiered and does not implement Cache.
type L2 struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewL2 wraps an existing Redis client. Every key is stored under prefix.
func NewL2(rdb redis.UniversalClient, prefix string) *L2 {
	return &L2{rdb: rdb, prefix: prefix}
}

// DialL2 creates a client for addr and wraps it.
func DialL2(addr, password string, db int, prefix string) *L2 {
	return NewL2(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), prefix)
}

// Get retrieves a value by key.
func (l *L2) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := l.rdb.Get(ctx, l.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

// Set stores a value under key with the given TTL.
func (l *L2) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return l.rdb.Set(ctx, l.prefix+key, val, ttl).Err()
}

// Delete removes key.
func (l *L2) Delete(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.prefix+key).Err()
}

// Ping checks the Redis connection.
func (l *L2) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (l *L2) Close() error {
	return l.rdb.Close()
}
