package listener

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisSubscriber implements RawSubscriber over Redis pub/sub channels,
// one channel per topic.
type RedisSubscriber struct {
	client *redis.Client
}

// NewRedisSubscriber connects to a Redis instance at addr ("host:port"; the
// start command passes the host part of the dispatch.octopoes_dsn URL) for
// event-bus subscriptions.
func NewRedisSubscriber(addr, password string, db int) *RedisSubscriber {
	return &RedisSubscriber{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (r *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	pubsub := r.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisSubscriber) Close() error {
	return r.client.Close()
}
