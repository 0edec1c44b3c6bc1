package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const guardKeyPrefix = "selfaction:"

// RedisGuard is the self-action guard backed by Redis, for deployments running
// more than one bot instance against the same gateway token. Redis TTLs handle
// expiry; GETDEL gives consume-on-match.
type RedisGuard struct {
	rdb      *goredis.Client
	cooldown time.Duration
}

// NewRedisGuard creates a Redis-backed guard with the given cooldown window.
func NewRedisGuard(rdb *goredis.Client, cooldown time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, cooldown: cooldown}
}

func (g *RedisGuard) Mark(ctx context.Context, userID, messageID, emoji string) error {
	key := redisGuardKey(userID, messageID, emoji)
	if err := g.rdb.Set(ctx, key, "1", g.cooldown).Err(); err != nil {
		return fmt.Errorf("failed to mark self-action: %w", err)
	}
	return nil
}

func (g *RedisGuard) IsSelfInitiated(ctx context.Context, userID, messageID, emoji string) (bool, error) {
	key := redisGuardKey(userID, messageID, emoji)
	_, err := g.rdb.GetDel(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check self-action: %w", err)
	}
	return true, nil
}

func redisGuardKey(userID, messageID, emoji string) string {
	return guardKeyPrefix + userID + ":" + messageID + ":" + emoji
}
