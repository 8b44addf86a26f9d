package dedupe

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "wabot:msg:"

// RedisGuard 基于 SETNX 的去重，多实例共享
type RedisGuard struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisGuard 创建 Redis 去重器
func NewRedisGuard(client *goredis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

// FirstSeen 首次出现返回 true
func (g *RedisGuard) FirstSeen(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return true, nil
	}

	ok, err := g.client.SetNX(ctx, messageKey(messageID), time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record message id: %w", err)
	}
	return ok, nil
}

// Forget 删除已记录的 ID
func (g *RedisGuard) Forget(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}
	if err := g.client.Del(ctx, messageKey(messageID)).Err(); err != nil {
		return fmt.Errorf("failed to forget message id: %w", err)
	}
	return nil
}

func messageKey(messageID string) string {
	return keyPrefix + messageID
}
