package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our value, so an
// expired lock taken over by another instance is left alone.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisLocker shares locks across instances with SET NX.
type RedisLocker struct {
	client   redis.Cmdable
	prefix   string
	owner    string
	newToken func() string
}

func NewRedisLocker(client redis.Cmdable, prefix, owner string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, owner: owner, newToken: uuid.NewString}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error) {
	redisKey := l.prefix + key
	value := l.owner + ":" + l.newToken()

	ok, err := l.client.SetNX(ctx, redisKey, value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", redisKey, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{redisKey}, value).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("failed to release lock %s: %w", redisKey, err)
		}
		return nil
	}, nil
}
