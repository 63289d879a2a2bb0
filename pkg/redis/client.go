// Package redis wraps go-redis/v9 for the two things oppy keeps there:
// session tokens and sealed item listings. Values are opaque bytes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avoiney/oppy/pkg/config"
)

const dialCheckTimeout = 5 * time.Second

type Client struct {
	rdb  *redis.Client
	addr string
}

// NewClient connects to cfg.Addr and fails unless the server answers a PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	c := &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		addr: cfg.Addr,
	}
	ctx, cancel := context.WithTimeout(ctx, dialCheckTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		c.rdb.Close()
		return nil, err
	}
	return c, nil
}

// Get returns the bytes at key. For a missing key the error satisfies
// IsNilError.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

// Set stores value at key; a zero ttl keeps it forever.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// IsNilError reports whether err means the key does not exist.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis at %s: %w", c.addr, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
