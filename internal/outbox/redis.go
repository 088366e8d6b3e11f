package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis backed outbox
type RedisConfig struct {
	KeyPrefix string
	// TTL bounds how long undelivered messages are kept; 0 keeps them forever
	TTL time.Duration
}

type redisOutbox struct {
	client *redis.Client
	config RedisConfig
}

// NewRedis creates an Outbox stored in Redis lists, one list per user
func NewRedis(client *redis.Client, config RedisConfig) Outbox {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "outbox"
	}
	return &redisOutbox{client: client, config: config}
}

func (o *redisOutbox) key(userID int64) string {
	return o.config.KeyPrefix + ":" + strconv.FormatInt(userID, 10)
}

func (o *redisOutbox) Push(ctx context.Context, userID int64, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	key := o.key(userID)
	pipe := o.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if o.config.TTL > 0 {
		pipe.Expire(ctx, key, o.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push message: %w", err)
	}
	return nil
}

func (o *redisOutbox) Drain(ctx context.Context, userID int64) ([]Message, error) {
	key := o.key(userID)

	pipe := o.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to drain outbox: %w", err)
	}

	raw := rangeCmd.Val()
	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return msgs, fmt.Errorf("failed to decode message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
