package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLockKey = "timecredit:cron:lock"
	defaultLockTTL = 30 * time.Minute
)

// ErrLockLost is returned by Refresh when the lease expired and another
// worker took the key.
var ErrLockLost = errors.New("cron lock lost")

// Lock is a leased mutex shared by every cron worker.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ExtendIfOwner(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
}

// RedisLock holds a lease keyed by a random owner token. Refresh and Release
// are no-ops against a key someone else now owns.
type RedisLock struct {
	store leaseStore
	key   string
	ttl   time.Duration
	owner string
}

func NewRedisLock(store leaseStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Refresh pushes the lease out by another ttl.
func (l *RedisLock) Refresh(ctx context.Context) error {
	if l.owner == "" {
		return ErrLockLost
	}
	ok, err := l.store.ExtendIfOwner(ctx, l.key, l.owner, l.ttl)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", l.key, err)
	}
	if !ok {
		l.owner = ""
		return ErrLockLost
	}
	return nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	owner := l.owner
	l.owner = ""
	if _, err := l.store.ReleaseIfOwner(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
