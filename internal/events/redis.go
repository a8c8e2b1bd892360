package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flagbase/flagbase-go/internal/logger"
)

const redisPublishTimeout = 2 * time.Second

// publisher is the slice of the go-redis client the sink needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisSink publishes JSON-encoded events to a Redis channel so other
// processes can react to flag changes.
type RedisSink struct {
	client  publisher
	channel string
	log     *logger.Logger
}

// NewRedisSink connects to addr and verifies the connection with a PING.
func NewRedisSink(ctx context.Context, addr, password, channel string, log *logger.Logger) (*RedisSink, error) {
	if log == nil {
		log = logger.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log.Info("redis event sink initialized", logger.String("addr", addr), logger.String("channel", channel))

	return newRedisSink(client, channel, log), nil
}

func newRedisSink(client publisher, channel string, log *logger.Logger) *RedisSink {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisSink{client: client, channel: channel, log: log}
}

// Emit implements Sink. Publish failures are logged, never returned: a
// broken fan-out must not stall the poller.
func (r *RedisSink) Emit(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.WithError(err).Error("failed to encode event", logger.String(logger.FieldEventKind, string(ev.Kind)))
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, redisPublishTimeout)
	defer cancel()

	if err := r.client.Publish(pubCtx, r.channel, payload).Err(); err != nil {
		r.log.WithError(err).Error("failed to publish event to redis",
			logger.String(logger.FieldEventKind, string(ev.Kind)),
			logger.String("channel", r.channel),
		)
	}
}

// Close closes the Redis connection.
func (r *RedisSink) Close() error {
	return r.client.Close()
}
