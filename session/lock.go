package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock held by another writer")

// Locker serializes writers per key. Locks expire on their own after ttl.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// NopLocker always succeeds; used when redis is not configured.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string, time.Duration) (func(), error) { return func() {}, nil }

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker takes SET NX PX locks and only releases locks it still owns.
type RedisLocker struct {
	rdb   redis.Cmdable
	wait  time.Duration
	retry time.Duration
}

func NewRedisLocker(rdb redis.Cmdable, wait time.Duration) *RedisLocker {
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	return &RedisLocker{rdb: rdb, wait: wait, retry: 25 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = releaseScript.Run(context.WithoutCancel(ctx), l.rdb, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockHeld
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}
