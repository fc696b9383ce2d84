package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLeaseTTL = 2 * time.Minute

// Owner-checked scripts so a lease that expired and was re-acquired by
// another process can never be extended or deleted by the old holder.
const (
	renewScript   = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("pexpire", KEYS[1], ARGV[2]) end return 0`
	releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) end return 0`
)

// Lock guards the automation run loop so only one process generates traffic
// at a time. Holders with a RenewInterval above zero must call Renew at
// least that often or the lease lapses.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	RenewInterval() time.Duration
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)
}

// RedisLock implements Lock as a SETNX lease with a TTL. The lease expires
// on its own if the holder dies without releasing; live holders keep it by
// renewing every half TTL.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	owner string
}

// NewRedisLock constructs a Redis-backed automation lease.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lease for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.owner = owner
		l.mu.Unlock()
	}
	return ok, nil
}

// Renew extends the lease by a full TTL if this process still owns it. A
// false return means the lease lapsed and may belong to someone else now.
func (l *RedisLock) Renew(ctx context.Context) (bool, error) {
	l.mu.Lock()
	owner := l.owner
	l.mu.Unlock()
	if owner == "" {
		return false, nil
	}

	res, err := l.client.Eval(ctx, renewScript, []string{l.key}, owner, l.ttl.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	renewed, ok := res.(int64)
	if !ok || renewed != 1 {
		l.mu.Lock()
		l.owner = ""
		l.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Release frees the lease only if the owner value still matches.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	owner := l.owner
	l.mu.Unlock()
	if owner == "" {
		return nil
	}

	if _, err := l.client.Eval(ctx, releaseScript, []string{l.key}, owner); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	l.mu.Lock()
	l.owner = ""
	l.mu.Unlock()
	return nil
}

// RenewInterval keeps the renewal cadence well inside the TTL.
func (l *RedisLock) RenewInterval() time.Duration {
	return l.ttl / 2
}

// LocalLock is the in-process fallback used when Redis is not configured.
type LocalLock struct {
	mu   sync.Mutex
	held bool
}

// NewLocalLock builds a process-local lock.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

// Acquire succeeds unless this process already holds the lock.
func (l *LocalLock) Acquire(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

// Renew always succeeds while held; a local lock cannot expire.
func (l *LocalLock) Renew(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held, nil
}

// Release frees the lock.
func (l *LocalLock) Release(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}

// RenewInterval is zero: no renewal loop is needed for a local lock.
func (l *LocalLock) RenewInterval() time.Duration {
	return 0
}
