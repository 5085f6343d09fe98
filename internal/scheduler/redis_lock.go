package scheduler

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker holds job locks as SET NX keys with a TTL, so two worker
// processes never run the same job at once. The holder keeps pushing the
// TTL out while its run lasts.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
}

func NewRedisLocker(client redis.Cmdable, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := keepAlive(ctx, name, ttl, func(ctx context.Context) (bool, error) {
		n, err := extendScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
		return n == 1, err
	})
	release := func() {
		stop()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		// only delete the key if it is still ours
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			log.FromContext(ctx, log.ComponentScheduler).WarnContext(ctx, "Failed to release job lock",
				"key", key, log.FieldError, err)
		}
	}
	return release, true, nil
}
