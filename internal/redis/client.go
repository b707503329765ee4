package redis

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Client is the shared connection pool used by the media stream publisher and workers.
type Client struct {
	*redis.Client
}

// NewClient parses REDIS_URL, e.g. redis://:password@localhost:6379/0.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Client{Client: redis.NewClient(opts)}, nil
}

// Ping fails fast when REDIS_URL is set but unreachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	log.Printf("[Redis] Connected to %s db=%d", c.Options().Addr, c.Options().DB)
	return nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}
