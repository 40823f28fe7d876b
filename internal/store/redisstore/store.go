// Package redisstore holds the optional Redis-backed tick lock. Overlapping
// ticks are already safe (the row store claims rows conditionally); the lock
// only keeps a second tick from burning remote-call quota on rows another
// tick is about to claim.
package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const tickLockKey = "autopress:tick_lock"

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// TryLockTick acquires the tick lock for ttl. Returns false when another
// tick holds it. Errors are reported as acquired so a Redis outage never
// stops processing.
func (s *Store) TryLockTick(ctx context.Context, ttl time.Duration) (bool, func(), error) {
	ok, err := s.rdb.SetNX(ctx, tickLockKey, time.Now().UnixNano(), ttl).Result()
	if err != nil {
		return true, func() {}, err
	}
	if !ok {
		return false, func() {}, nil
	}
	release := func() {
		_ = s.rdb.Del(context.Background(), tickLockKey).Err()
	}
	return true, release, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
