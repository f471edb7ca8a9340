package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"avito-assist/internal/core/ports"
)

// Ensure RedisRepository implements ChatStateRepository
var _ ports.ChatStateRepository = (*RedisRepository)(nil)

// DefaultChatStateTTL bounds how long a chat's last message id is remembered
const DefaultChatStateTTL = 7 * 24 * time.Hour

// RedisRepository remembers the last processed message per chat
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository creates a new Redis repository instance
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = DefaultChatStateTTL
	}
	return &RedisRepository{
		client: client,
		ttl:    ttl,
	}
}

// GetLastMessageID returns the last processed message id, "" when unknown
func (r *RedisRepository) GetLastMessageID(ctx context.Context, chatID string) (string, error) {
	id, err := r.client.Get(ctx, buildChatStateKey(chatID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		slog.Error("Failed to read chat state",
			"error", err,
			"chat_id", chatID,
		)
		return "", fmt.Errorf("get last message id: %w", err)
	}
	return id, nil
}

// SetLastMessageID records the message id and refreshes the TTL
func (r *RedisRepository) SetLastMessageID(ctx context.Context, chatID, messageID string) error {
	key := buildChatStateKey(chatID)
	if err := r.client.Set(ctx, key, messageID, r.ttl).Err(); err != nil {
		slog.Error("Failed to write chat state",
			"error", err,
			"chat_id", chatID,
			"ttl", r.ttl,
		)
		return fmt.Errorf("set last message id: %w", err)
	}

	slog.Debug("Chat state updated",
		"key", key,
		"message_id", messageID,
	)
	return nil
}

// Ping checks connectivity
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// buildChatStateKey constructs the Redis key, format chat:last:{chat_id}
func buildChatStateKey(chatID string) string {
	return fmt.Sprintf("chat:last:%s", chatID)
}
