package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed queue: producers LPUSH, consumers BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

func NewRedisQueue(client *redis.Client, key string, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{client: client, key: key, logger: logger}
}

func (r *RedisQueue) Publish(ctx context.Context, data []byte) error {
	return r.client.LPush(ctx, r.key, data).Err()
}

func (r *RedisQueue) Subscribe() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *RedisQueue) Consume(ctx context.Context, handler func([]byte) error) error {
	for {
		res, err := r.client.BRPop(ctx, time.Second, r.key).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return err
		}

		// res is [key, value]
		if err := handler([]byte(res[1])); err != nil {
			r.logger.Error("error processing message", "key", r.key, "err", err)
		}
	}
}

func (r *RedisQueue) Close() error {
	return r.client.Close()
}
