package distributor

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroker bridges published frames to an external redis pub/sub
// channel per topic, letting other processes (a dashboard, a second
// fusion node) observe the same distribution fabric, SPEC_FULL.md §3.
// It is write-only from the Distributor's point of view; nothing here
// reads back into local subscribers.
type RedisBroker struct {
	client *redis.Client
	log    zerolog.Logger
	ctx    context.Context
}

// NewRedisBroker wraps an already-configured redis client.
func NewRedisBroker(ctx context.Context, client *redis.Client, log zerolog.Logger) *RedisBroker {
	return &RedisBroker{client: client, log: log.With().Str("component", "distributor.redis").Logger(), ctx: ctx}
}

func (b *RedisBroker) Publish(topic string, frame Frame) {
	if err := b.client.Publish(b.ctx, topic, frame.Bytes).Err(); err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Msg("redis publish failed")
	}
}
