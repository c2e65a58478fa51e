package billing

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix   = "billing:lock:"
	lockTTL         = 30 * time.Second
	lockRetryDelay  = 100 * time.Millisecond
	lockAcquireWait = 5 * time.Second
)

// ErrLockNotAcquired is returned when another delivery for the same
// transaction key is still being processed after the acquire window.
var ErrLockNotAcquired = errors.New("billing: could not acquire transaction lock")

// Locker serializes webhook processing per transaction key. The gateway is
// expected to deliver events for one chain serially, but a short Redis lease
// keeps a redelivery race from interleaving two read-modify-write sequences.
type Locker struct {
	client *redis.Client
}

// NewLocker creates a locker on an existing Redis client.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Acquire takes the lease for a key, waiting briefly if it is held. The
// returned release function is safe to defer; releasing a lease that already
// expired is a no-op.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	deadline := time.Now().Add(lockAcquireWait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, 1, lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				l.client.Del(context.Background(), redisKey)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}
