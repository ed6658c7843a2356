package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another request already holds the order lock.
var ErrLocked = errors.New("order is being provisioned by another request")

// luaReleaseIfMatch deletes the key only while it still holds our token, so an
// expired lock taken over by another request is never released by us.
const luaReleaseIfMatch = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

// OrderLocker serialises provisioning per order across service replicas.
type OrderLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOrderLocker(rdb *redis.Client, ttl time.Duration) *OrderLocker {
	return &OrderLocker{rdb: rdb, ttl: ttl}
}

// OrderLockKey is the Redis key guarding provisioning of one order.
func OrderLockKey(orderID int64) string {
	return fmt.Sprintf("fulfillment:provision:lock:%d", orderID)
}

// Acquire takes the lock for orderID. The returned release func is safe to call
// once the caller is done; it uses a fresh context so a cancelled request still
// frees the lock.
func (l *OrderLocker) Acquire(ctx context.Context, orderID int64) (func(), error) {
	key := OrderLockKey(orderID)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.rdb.Eval(releaseCtx, luaReleaseIfMatch, []string{key}, token).Err()
	}
	return release, nil
}
