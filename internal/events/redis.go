package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedis creates and validates a go-redis client connection.
func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisBridge fans events out through a Redis channel so that every API
// instance relays every mutation to its own websocket clients.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	sink    Sink
}

func NewRedisBridge(rdb *redis.Client, channel string, sink Sink) *RedisBridge {
	return &RedisBridge{rdb: rdb, channel: channel, sink: sink}
}

// Publish encodes evt and publishes it on the bridge channel.
func (b *RedisBridge) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// Run relays channel messages into the sink until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	log.Info().Str("channel", b.channel).Msg("event bridge subscribed")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := b.sink.Broadcast(ctx, []byte(msg.Payload)); err != nil {
				log.Warn().Err(err).Msg("event bridge relay failed")
			}
		}
	}
}
