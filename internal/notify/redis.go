package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBackend publishes payloads on a Pub/Sub channel, a list, or both.
// The client is shared with the session store and is not closed here.
type RedisBackend struct {
	client  *redis.Client
	channel string
	listKey string
	listMax int64
}

// NewRedisBackend returns a backend that uses the given client. Either
// channel or listKey may be empty to disable that mode. The list keeps the
// newest listMax payloads; listMax below 1 leaves it untrimmed.
func NewRedisBackend(client *redis.Client, channel, listKey string, listMax int64) *RedisBackend {
	return &RedisBackend{client: client, channel: channel, listKey: listKey, listMax: listMax}
}

func (r *RedisBackend) Name() string {
	return "redis"
}

func (r *RedisBackend) Publish(ctx context.Context, payload []byte) error {
	if r.channel != "" {
		if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
			return err
		}
	}
	if r.listKey == "" {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.listKey, payload)
		if r.listMax > 0 {
			pipe.LTrim(ctx, r.listKey, 0, r.listMax-1)
		}
		return nil
	})
	return err
}

// Close is a no-op; the application owns the shared client.
func (r *RedisBackend) Close() error {
	return nil
}
