// Package cache provides a Redis read-through cache in front of the match store.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jonathan/resume-matcher/internal/logger"
)

// Options holds Redis connection configuration
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps the Redis client with the few operations the cache needs
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, opts Options, log *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	logger.OrNop(log).Info("connected to redis", zap.String("addr", opts.Addr))
	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Get retrieves a value by key. A missing key is reported as found=false.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Incr increments a counter and refreshes its expiration in one transaction
func (c *Client) Incr(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, expiration)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// setIfEqual checks the guard and sets the value in one server-side step
var setIfEqual = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if not current then current = "0" end
if current ~= ARGV[1] then return 0 end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// SetIfEqual sets key to value only while guardKey holds guardValue
func (c *Client) SetIfEqual(ctx context.Context, guardKey, guardValue, key string, value []byte, expiration time.Duration) (bool, error) {
	n, err := setIfEqual.Run(ctx, c.rdb, []string{guardKey, key}, guardValue, value, expiration.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Del deletes one or more keys
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}
