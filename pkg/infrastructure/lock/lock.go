// Package lock keeps overlapping scheduler triggers from importing the same
// account concurrently.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by Acquire when another run holds the lock.
var ErrLocked = errors.New("lock held by another run")

// Locker guards one named resource.
type Locker interface {
	// Acquire returns a release func, or ErrLocked.
	Acquire(ctx context.Context, name string) (release func(context.Context) error, err error)
}

// releaseScript deletes the key only when it still holds our token, so an
// expired lock re-acquired by another run is never released by us.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type RedisLock struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewRedisLock(rdb redis.Cmdable, ttl time.Duration) *RedisLock {
	return &RedisLock{rdb: rdb, ttl: ttl, prefix: "garmin-importer:lock:"}
}

func (l *RedisLock) Key(name string) string {
	return l.prefix + name
}

func (l *RedisLock) Acquire(ctx context.Context, name string) (func(context.Context) error, error) {
	key := l.Key(name)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	release := func(ctx context.Context) error {
		if err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("redis release %s: %w", key, err)
		}
		return nil
	}
	return release, nil
}

// NoopLock always succeeds. Used when no Redis is configured; the per-activity
// existence check is then the only guard against concurrent runs.
type NoopLock struct{}

func (NoopLock) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
