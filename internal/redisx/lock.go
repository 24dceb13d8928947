package redisx

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("item lock not acquired")

// release deletes the key only if it still holds our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker holds per-item locks across processes. A lock expires after
// TTL, so a run that outlives it is no longer exclusive.
type Locker struct {
	RDB   *redis.Client
	TTL   time.Duration
	Retry time.Duration
}

func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = TTLItemLock
	}
	return &Locker{RDB: rdb, TTL: ttl, Retry: 25 * time.Millisecond}
}

// Lock takes every id in ascending order, waiting until ctx is done.
func (l *Locker) Lock(ctx context.Context, inventoryItemIDs []int64) (func(), error) {
	ids := slices.Clone(inventoryItemIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	token := uuid.NewString()
	held := make([]string, 0, len(ids))
	unlock := func() {
		// release even if the caller's ctx is gone
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, k := range held {
			release.Run(rctx, l.RDB, []string{k}, token)
		}
	}

	for _, id := range ids {
		key := fmt.Sprintf(KeyItemLock, id)
		if err := l.acquire(ctx, key, token); err != nil {
			unlock()
			return nil, err
		}
		held = append(held, key)
	}
	return unlock, nil
}

func (l *Locker) acquire(ctx context.Context, key, token string) error {
	retry := l.Retry
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	for {
		ok, err := l.RDB.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, ctx.Err())
		case <-t.C:
		}
	}
}
