package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/stayguard/stayguard/internal/logger"
)

// releaseScript deletes the key only when the stored token matches, so one
// holder cannot release a lock that expired and was re-acquired by another.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisKeyLock implements KeyLock across instances with SET NX + TTL.
type RedisKeyLock struct {
	client    *redis.Client
	ttl       time.Duration
	retryWait time.Duration
	prefix    string
}

// NewRedisKeyLock creates a distributed key lock from a Redis URL.
func NewRedisKeyLock(redisURL string, ttl time.Duration) (*RedisKeyLock, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisKeyLock{
		client:    client,
		ttl:       ttl,
		retryWait: 50 * time.Millisecond,
		prefix:    "lock:alert:",
	}, nil
}

// NewRedisKeyLockFromClient wraps an existing client; used by tests.
func NewRedisKeyLockFromClient(client *redis.Client, ttl time.Duration) *RedisKeyLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisKeyLock{
		client:    client,
		ttl:       ttl,
		retryWait: 50 * time.Millisecond,
		prefix:    "lock:alert:",
	}
}

// Acquire polls SET NX until the key is granted or ctx is done.
func (l *RedisKeyLock) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryWait):
		}
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
			logger.Warn("Lock release failed", "key", key, "error", err)
		}
	}
	return release, nil
}

// Close releases the underlying client.
func (l *RedisKeyLock) Close() error {
	return l.client.Close()
}
