package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"engagement_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const relayPublishTimeout = 2 * time.Second

type envelope struct {
	UserID uuid.UUID `json:"userId"`
	Event  Event     `json:"event"`
}

// RedisRelay carries SSE events between processes over a Redis pub/sub channel.
// A process without HTTP clients publishes through it; the API process runs
// Forward to hand relayed events to its local streams.
type RedisRelay struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
}

func NewRedisRelay(client *redis.Client, channel string, log *logger.Logger) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, log: log.WithComponent("sse.relay")}
}

// Publish sends the event to the relay channel. Failures are logged; realtime
// delivery is best effort.
func (r *RedisRelay) Publish(userID uuid.UUID, event Event) {
	payload, err := json.Marshal(envelope{UserID: userID, Event: event})
	if err != nil {
		r.log.Error("marshal relay event", "type", event.Type, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.Warn("relay publish failed", "type", event.Type, "error", err)
	}
}

// Forward subscribes to the relay channel and passes every event to local
// until ctx is cancelled.
func (r *RedisRelay) Forward(ctx context.Context, local Publisher) error {
	ps := r.client.Subscribe(ctx, r.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info("relay subscribed", "channel", r.channel)

	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("invalid relay payload", "error", err)
				continue
			}
			local.Publish(env.UserID, env.Event)
		}
	}
}

var _ Publisher = (*RedisRelay)(nil)
var _ Publisher = (*Service)(nil)
