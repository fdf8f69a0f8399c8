package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pingTimeout bounds the connectivity check performed on open.
const pingTimeout = 3 * time.Second

// RedisBridge implements Bridge on a Redis server. All keys share a prefix
// so several storefront instances can use one database.
type RedisBridge struct {
	rdb    redis.UniversalClient
	prefix string
}

// RedisOptions configure a RedisBridge.
type RedisOptions struct {
	Addr   string
	DB     int
	Prefix string
}

// NewRedisBridge connects to Redis and verifies the connection with a ping.
func NewRedisBridge(ctx context.Context, opts RedisOptions) (*RedisBridge, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis bridge: ping %s: %w", opts.Addr, err)
	}

	return NewRedisBridgeFromClient(rdb, opts.Prefix), nil
}

// NewRedisBridgeFromClient wraps an existing client.
func NewRedisBridgeFromClient(rdb redis.UniversalClient, prefix string) *RedisBridge {
	return &RedisBridge{
		rdb:    rdb,
		prefix: prefix,
	}
}

// Get retrieves the value stored under key.
func (b *RedisBridge) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidKey
	}

	value, err := b.rdb.Get(ctx, b.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}

	return value, true, nil
}

// Set stores value under key without expiry.
func (b *RedisBridge) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}

	if err := b.rdb.Set(ctx, b.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	return nil
}

// Remove deletes key.
func (b *RedisBridge) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	if err := b.rdb.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}

	return nil
}

// Close closes the underlying client.
func (b *RedisBridge) Close() error {
	return b.rdb.Close()
}
