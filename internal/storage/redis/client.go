package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "room:"

type Client struct {
	cli *redis.Client
	ttl time.Duration
}

func New(ctx context.Context, url string, ttl time.Duration) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Client{cli: cli, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// GetRoom возвращает закешированный снимок документа. ok=false — промах.
func (c *Client) GetRoom(ctx context.Context, id string) ([]byte, bool, error) {
	data, err := c.cli.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *Client) SetRoom(ctx context.Context, id string, data []byte) error {
	return c.cli.Set(ctx, keyPrefix+id, data, c.ttl).Err()
}

// InvalidateRoom удаляет снимок; вызывается после каждой успешной записи в Postgres.
func (c *Client) InvalidateRoom(ctx context.Context, id string) error {
	return c.cli.Del(ctx, keyPrefix+id).Err()
}

// FlushDB очищает текущую БД Redis (для тестов/перезапуска).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
