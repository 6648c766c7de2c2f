package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"taskservice/internal/logging"
)

// Client wraps redis.Client but fails safe: connectivity errors are logged
// and then swallowed so a cache outage degrades to cache misses.
type Client struct {
	client *redis.Client
	log    logging.Logger
}

// New creates a new Redis client.
func New(addr, password string, db int, log logging.Logger) *Client {
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	return NewWithRedis(redis.NewClient(opts), log)
}

// NewWithRedis wraps an existing redis client.
func NewWithRedis(rdb *redis.Client, log logging.Logger) *Client {
	return &Client{client: rdb, log: log.With("component", "cache")}
}

// Get returns value or nil if missing or redis unavailable.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	res, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		// fail safe: behave like cache miss
		c.log.Warn(ctx, "cache get failed", "key", key, "error", err.Error())
		return nil, nil
	}
	return res, nil
}

// Set stores value with TTL, ignoring redis errors.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache set failed", "key", key, "error", err.Error())
	}
	return nil
}

// Info returns the redis INFO "server" section as a diagnostic string.
// Unlike the data operations it reports failures so callers can show them.
func (c *Client) Info(ctx context.Context) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("cache not configured")
	}
	return c.client.Info(ctx, "server").Result()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
