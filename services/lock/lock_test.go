package locksvc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-onboarding/core/approval"
)

func setupRedisLocker(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisLocker(client, time.Minute, func(err error) { t.Errorf("unexpected error: %v", err) })
}

func TestRedisLocker_Lock(t *testing.T) {
	mr, locker := setupRedisLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("masomo:lock:req-1"))

	_, err = locker.Lock(ctx, "req-1")
	assert.Equal(t, approval.ErrLocked, err)

	// other keys are independent
	unlock2, err := locker.Lock(ctx, "req-2")
	require.NoError(t, err)
	unlock2()

	unlock()
	assert.False(t, mr.Exists("masomo:lock:req-1"))

	unlock, err = locker.Lock(ctx, "req-1")
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_Expiry(t *testing.T) {
	mr, locker := setupRedisLocker(t)
	ctx := context.Background()

	_, err := locker.Lock(ctx, "req-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	unlock, err := locker.Lock(ctx, "req-1")
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_UnlockKeepsForeignLock(t *testing.T) {
	mr, locker := setupRedisLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "req-1")
	require.NoError(t, err)

	// expired then taken by someone else
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set("masomo:lock:req-1", "someone-else"))

	unlock()
	got, err := mr.Get("masomo:lock:req-1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLocalLocker_Lock(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "req-1")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "req-1")
	assert.Equal(t, approval.ErrLocked, err)

	unlock()
	unlock() // no-op

	unlock, err = locker.Lock(ctx, "req-1")
	require.NoError(t, err)
	unlock()
}
