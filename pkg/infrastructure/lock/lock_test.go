package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopLockAlwaysAcquires(t *testing.T) {
	ctx := context.Background()
	var l Locker = NoopLock{}

	release, err := l.Acquire(ctx, "runner@example.com")
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "runner@example.com")
	require.NoError(t, err)
	assert.NoError(t, release(ctx))
}

func TestRedisLockKey(t *testing.T) {
	l := NewRedisLock(redis.NewClient(&redis.Options{Addr: "localhost:0"}), time.Minute)
	assert.Equal(t, "garmin-importer:lock:runner@example.com", l.Key("runner@example.com"))
}

// Runs against a real server when REDIS_ADDR is set.
func TestRedisLockExclusive(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	l := NewRedisLock(rdb, 5*time.Second)
	name := "test-" + t.Name()

	release, err := l.Acquire(ctx, name)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, name)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release(ctx))

	release2, err := l.Acquire(ctx, name)
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}
