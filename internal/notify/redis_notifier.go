package notify

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"

	"lokapos/backend/internal/domain"
)

// RedisNotifier publishes remote-sale events on a pub/sub channel keyed
// by the fulfilling location, so each location only subscribes to its
// own pick requests.
type RedisNotifier struct {
	client        *redis.Client
	channelPrefix string
}

func NewRedisNotifier(addr string, password string, db int, channelPrefix string) *RedisNotifier {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisNotifier{client: client, channelPrefix: channelPrefix}
}

func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

func (n *RedisNotifier) PublishRemoteSale(ctx context.Context, event domain.RemoteSaleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	channel := n.channelPrefix + ":" + event.FulfillingLocationID
	return n.client.Publish(ctx, channel, payload).Err()
}
