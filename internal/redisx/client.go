package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Dedup marks an event as seen by a service.
type Dedup struct {
	RDB     *redis.Client
	Service string
}

// Seen reports whether eventID was already claimed, claiming it if not.
func (d *Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID), 1, TTLDedup).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Forget drops a claim so a failed event can be handled again.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID)).Err()
}
