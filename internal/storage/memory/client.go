package memory

import (
	"context"
	"sync"
	"time"
)

const defaultTTL = 10 * time.Minute

type item struct {
	data []byte
	exp  time.Time
}

// Client — in-memory реализация RoomCache для -dev режима без Redis.
type Client struct {
	mu    sync.RWMutex
	ttl   time.Duration
	rooms map[string]item
}

func New(ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Client{ttl: ttl, rooms: make(map[string]item)}
}

func (c *Client) Close() error { return nil }

func (c *Client) GetRoom(ctx context.Context, id string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.rooms[id]
	if !ok || time.Now().After(v.exp) {
		return nil, false, nil
	}
	return v.data, true, nil
}

func (c *Client) SetRoom(ctx context.Context, id string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[id] = item{data: data, exp: time.Now().Add(c.ttl)}
	return nil
}

func (c *Client) InvalidateRoom(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, id)
	return nil
}
