package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mikey/email-triage/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisNotifier publishes pipeline events on per-owner Redis channels.
// Delivery is fire-and-forget: publish failures are logged and swallowed.
type RedisNotifier struct {
	client        *redis.Client
	channelPrefix string
	logger        *zap.Logger
}

// event is the published envelope
type event struct {
	Type    string      `json:"type"`
	Owner   string      `json:"owner"`
	Payload interface{} `json:"payload"`
}

// NewRedisNotifier creates a new Redis notifier
func NewRedisNotifier(addr, password string, db int, channelPrefix string, logger *zap.Logger) *RedisNotifier {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisNotifier{
		client:        client,
		channelPrefix: channelPrefix,
		logger:        logger,
	}
}

// BatchComplete publishes a batch completion event
func (n *RedisNotifier) BatchComplete(ctx context.Context, owner string, ev core.BatchCompleteEvent) {
	n.publish(ctx, owner, event{Type: "batch_complete", Owner: owner, Payload: ev})
}

// CategoryChanged publishes a category change event
func (n *RedisNotifier) CategoryChanged(ctx context.Context, owner string, ev core.CategoryChangedEvent) {
	n.publish(ctx, owner, event{Type: "category_changed", Owner: owner, Payload: ev})
}

func (n *RedisNotifier) publish(ctx context.Context, owner string, ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("Failed to encode notification", zap.Error(err))
		return
	}
	channel := fmt.Sprintf("%s:%s:events", n.channelPrefix, owner)
	if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
		n.logger.Warn("Failed to publish notification",
			zap.String("channel", channel),
			zap.Error(err))
	}
}

// Close closes the Redis connection
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
