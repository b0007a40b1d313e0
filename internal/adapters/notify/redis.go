package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/triage/internal/ports/secondary"
)

// DefaultChannel is the pub/sub channel responders subscribe to.
const DefaultChannel = "triage:escalations"

// Publisher is the subset of go-redis client methods used by RedisNotifier.
type Publisher interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisNotifier publishes notifications as JSON to a Redis channel.
type RedisNotifier struct {
	client  Publisher
	channel string
}

// NewRedisNotifier connects to Redis at addr and verifies the connection with PING.
func NewRedisNotifier(ctx context.Context, addr, channel string) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis notifier: ping %s failed: %w", addr, err)
	}
	return NewRedisNotifierWithClient(client, channel), nil
}

// NewRedisNotifierWithClient creates a RedisNotifier backed by a pre-built client.
func NewRedisNotifierWithClient(client Publisher, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

// Channel returns the channel notifications are published to.
func (n *RedisNotifier) Channel() string { return n.channel }

// Notify publishes msg. It succeeds even when no subscriber is listening.
func (n *RedisNotifier) Notify(ctx context.Context, msg secondary.Notification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// Ensure RedisNotifier implements the interface
var _ secondary.Notifier = (*RedisNotifier)(nil)
