package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*OrderLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewOrderLocker(rdb, ttl), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	locker, _ := newTestLocker(t, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, 42)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, 42)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := locker.Acquire(ctx, 43)
	require.NoError(t, err)
	other()

	release()

	again, err := locker.Acquire(ctx, 42)
	require.NoError(t, err)
	again()
}

func TestLockExpires(t *testing.T) {
	locker, mr := newTestLocker(t, 10*time.Second)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, 7)
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)

	release, err := locker.Acquire(ctx, 7)
	require.NoError(t, err)
	release()
}

func TestStaleReleaseKeepsNewOwner(t *testing.T) {
	locker, mr := newTestLocker(t, 10*time.Second)
	ctx := context.Background()

	staleRelease, err := locker.Acquire(ctx, 9)
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)

	_, err = locker.Acquire(ctx, 9)
	require.NoError(t, err)

	staleRelease()
	assert.True(t, mr.Exists(OrderLockKey(9)))
}
