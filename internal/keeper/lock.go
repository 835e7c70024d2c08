package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker gives one keeper at a time the right to drive the queue
type Locker interface {
	// Acquire takes or extends the lock. It returns false when another
	// keeper holds it.
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LocalLock is used when a single keeper runs without Redis
type LocalLock struct{}

func (LocalLock) Acquire(context.Context) (bool, error) { return true, nil }
func (LocalLock) Release(context.Context) error         { return nil }

// Extends the TTL only while the key still holds our token
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a lease held in a Redis key. The lease expires after ttl
// unless the holder renews it, so a crashed keeper never blocks the queue
// for longer than ttl.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func NewRedisLock(redisURL, key string, ttl time.Duration) (*RedisLock, error) {
	if key == "" {
		return nil, fmt.Errorf("lock key cannot be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &RedisLock{
		client: redis.NewClient(opts),
		key:    key,
		token:  uuid.New().String(),
		ttl:    ttl,
	}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire keeper lock: %w", err)
	}
	if acquired {
		zap.L().Debug("Keeper lock acquired", zap.String("key", l.key))
		return true, nil
	}

	extended, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to extend keeper lock: %w", err)
	}
	return extended == 1, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release keeper lock: %w", err)
	}
	return nil
}

func (l *RedisLock) Close() error {
	return l.client.Close()
}
