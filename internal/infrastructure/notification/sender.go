package notification

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/alem-hub/gradebook/internal/domain/notification"
	"github.com/alem-hub/gradebook/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// QueuePrefix prefixes the per-channel outbound lists.
const QueuePrefix = "gradebook:notifications:"

// DefaultQueueLimit caps each outbound list.
const DefaultQueueLimit = 10000

// QueueKey returns the Redis list of a delivery channel.
func QueueKey(channel domain.ChannelType) string {
	return QueuePrefix + channel.String()
}

// RedisSender pushes notifications to per-channel Redis lists consumed by
// the delivery services (in-app feed, push, email, digest).
type RedisSender struct {
	client *redis.Client
	limit  int64
}

// NewRedisSender creates a sender. limit <= 0 uses DefaultQueueLimit.
func NewRedisSender(client *redis.Client, limit int64) *RedisSender {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	return &RedisSender{client: client, limit: limit}
}

// Deliver implements domain.Sender.
func (s *RedisSender) Deliver(ctx context.Context, channel domain.ChannelType, n domain.Notification) error {
	data, err := encode(channel, n)
	if err != nil {
		return err
	}

	key := QueueKey(channel)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, s.limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push notification to %s: %w", key, err)
	}
	return nil
}

// message is the wire form read by delivery services.
type message struct {
	Channel      domain.ChannelType `json:"channel"`
	Notification domain.Notification `json:"notification"`
}

func encode(channel domain.ChannelType, n domain.Notification) ([]byte, error) {
	data, err := json.Marshal(message{Channel: channel, Notification: n})
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	return data, nil
}

// LogSender writes notifications to the log. Used when Redis is disabled.
type LogSender struct {
	log *logger.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log.With(logger.Component("notification_log_sender"))}
}

// Deliver implements domain.Sender.
func (s *LogSender) Deliver(_ context.Context, channel domain.ChannelType, n domain.Notification) error {
	s.log.Info("notification",
		logger.UserID(n.UserID),
		logger.String("channel", channel.String()),
		logger.String("type", string(n.Type)),
		logger.String("title", n.Title),
	)
	return nil
}
