package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 50 * time.Minute

// Lock keeps two cron workers from running the same cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	Holder(ctx context.Context) (string, error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLockParams configure a RedisLock. Worker names the process in the
// stored value so a skipped run can log who holds the lock.
type RedisLockParams struct {
	Store  lockStore
	Key    string
	TTL    time.Duration
	Worker string
}

// RedisLock is a SETNX lease with a TTL, so a crashed worker cannot hold it
// past one cycle.
type RedisLock struct {
	store  lockStore
	key    string
	ttl    time.Duration
	worker string
	token  string
}

// NewRedisLock validates params and builds the lock.
func NewRedisLock(params RedisLockParams) (*RedisLock, error) {
	if params.Store == nil {
		return nil, errors.New("redis store required for lock")
	}
	if params.Key == "" {
		return nil, errors.New("lock key is required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	worker := params.Worker
	if worker == "" {
		worker = "cron-worker"
	}
	return &RedisLock{store: params.Store, key: params.Key, ttl: ttl, worker: worker}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := l.worker + "/" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release deletes the key only while it still carries this lock's token.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	current, err := l.store.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		l.token = ""
		return nil
	case err != nil:
		return fmt.Errorf("read lock token: %w", err)
	}
	if current != l.token {
		l.token = ""
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.token = ""
	return nil
}

// Holder returns the token of whoever holds the lock, or "" when it is free.
func (l *RedisLock) Holder(ctx context.Context) (string, error) {
	current, err := l.store.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return current, err
}
