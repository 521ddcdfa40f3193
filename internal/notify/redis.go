package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"microgrid-market/internal/eventing"
)

// RedisChannel publishes events on Redis Pub/Sub, one Redis channel per
// event type under a shared prefix.
type RedisChannel struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisChannel constructs a RedisChannel.
func NewRedisChannel(rdb *redis.Client, prefix string) (*RedisChannel, error) {
	if rdb == nil {
		return nil, errors.New("redis channel: nil client")
	}
	if prefix == "" {
		prefix = "microgrid"
	}
	return &RedisChannel{rdb: rdb, prefix: prefix}, nil
}

// Send implements Channel.
func (c *RedisChannel) Send(ctx context.Context, event eventing.Event) error {
	if event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis channel: marshal: %w", err)
	}
	target := c.prefix + ":" + event.EventType()
	if err := c.rdb.Publish(ctx, target, payload).Err(); err != nil {
		return fmt.Errorf("redis channel: publish %s: %w", target, err)
	}
	return nil
}
