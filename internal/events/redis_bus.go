package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBus fans events out to every server instance through Redis pub/sub.
// EmitEvent publishes; each instance's subscriber loop hands received events
// to its locally registered handlers, including the publishing instance.
type RedisBus struct {
	client  *redis.Client
	channel string
	local   *InMemoryEventEmitter
	logger  *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisBus connects to redisURL and returns a bus publishing on
// "<prefix>:task-events". Call Start before emitting.
func NewRedisBus(redisURL, prefix string, logger *slog.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBusWithClient(client, prefix, logger), nil
}

// NewRedisBusWithClient creates a bus from an existing Redis client.
func NewRedisBusWithClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{
		client:  client,
		channel: prefix + ":task-events",
		local:   NewInMemoryEventEmitter(logger),
		logger:  logger.With("component", "redis_bus"),
	}
}

// Channel returns the pub/sub channel name.
func (b *RedisBus) Channel() string {
	return b.channel
}

// RegisterHandler adds a handler for events received from Redis.
func (b *RedisBus) RegisterHandler(handler EventHandler) {
	b.local.RegisterHandler(handler)
}

// Start subscribes to the channel and begins dispatching received events.
// It returns once the subscription is confirmed, so events published
// afterwards are not missed.
func (b *RedisBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub != nil {
		return errors.New("redis bus already started")
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}

	b.pubsub = pubsub
	b.done = make(chan struct{})
	go b.run(pubsub.Channel(), b.done)

	b.logger.Info("redis bus subscribed", "channel", b.channel)
	return nil
}

func (b *RedisBus) run(messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range messages {
		var event BroadcastEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			b.logger.Warn("dropping undecodable event", "error", err)
			continue
		}
		// Handler errors are logged by the local emitter.
		_ = b.local.EmitEvent(context.Background(), &event)
	}
}

// EmitEvent implements EventEmitter by publishing event to Redis.
func (b *RedisBus) EmitEvent(ctx context.Context, event *BroadcastEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Error("failed to publish event",
			"error", err,
			"event_id", event.ID,
			"task_id", event.TaskID)
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close stops the subscriber loop and closes the Redis client.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub != nil {
		_ = pubsub.Close()
		<-done
	}
	return b.client.Close()
}
