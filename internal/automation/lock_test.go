package automation

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
)

// fakeLeaseStore emulates the redis lease key: one owner, a TTL that only
// moves when the owner-checked scripts run.
type fakeLeaseStore struct {
	mu     sync.Mutex
	owner  string
	ttl    time.Duration
	renews int
}

func (f *fakeLeaseStore) SetNX(_ context.Context, _ string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owner != "" {
		return false, nil
	}
	f.owner, _ = value.(string)
	f.ttl = ttl
	return true, nil
}

func (f *fakeLeaseStore) Eval(_ context.Context, script string, _ []string, args ...any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, _ := args[0].(string)
	if f.owner == "" || f.owner != owner {
		return int64(0), nil
	}
	switch script {
	case renewScript:
		ms, _ := args[1].(int64)
		f.ttl = time.Duration(ms) * time.Millisecond
		f.renews++
		return int64(1), nil
	case releaseScript:
		f.owner = ""
		return int64(1), nil
	}
	return nil, fmt.Errorf("unexpected script %q", script)
}

// expire simulates redis dropping the key after the TTL lapses.
func (f *fakeLeaseStore) expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owner = ""
}

func (f *fakeLeaseStore) currentOwner() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owner
}

func (f *fakeLeaseStore) renewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renews
}

func newLeaseLock(t *testing.T, store *fakeLeaseStore, ttl time.Duration) *RedisLock {
	t.Helper()
	lock, err := NewRedisLock(store, "bs:lock:automation", ttl)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	return lock
}

func TestRedisLockLeaseLifecycle(t *testing.T) {
	store := &fakeLeaseStore{}
	ctx := context.Background()
	first := newLeaseLock(t, store, time.Minute)
	second := newLeaseLock(t, store, time.Minute)

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second acquire must fail while the lease is held")
	}

	held, err := first.Renew(ctx)
	if err != nil || !held {
		t.Fatalf("renew: held=%v err=%v", held, err)
	}
	if store.renewCount() != 1 {
		t.Fatalf("renew count = %d", store.renewCount())
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, _ = second.Acquire(ctx)
	if !ok {
		t.Fatal("acquire after release must succeed")
	}
}

func TestRedisLockExpiredLeaseIsNotTouched(t *testing.T) {
	store := &fakeLeaseStore{}
	ctx := context.Background()
	first := newLeaseLock(t, store, time.Minute)
	second := newLeaseLock(t, store, time.Minute)

	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("first acquire must succeed")
	}
	store.expire()

	held, err := first.Renew(ctx)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if held {
		t.Fatal("renew must report an expired lease as lost")
	}

	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expired lease must be acquirable")
	}
	// The old holder's release must not delete the new owner's lease.
	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if store.currentOwner() == "" {
		t.Fatal("stale release deleted the new owner's lease")
	}
}

func TestLeaseSurvivesRunsLongerThanTTL(t *testing.T) {
	store := &fakeLeaseStore{}
	ctx := context.Background()
	ttl := 40 * time.Millisecond

	sender := &countingSender{}
	sched, err := NewScheduler(SchedulerParams{
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Builder:     stubBuilder{},
		Dispatcher:  sender,
		Intervals:   fixedIntervals{interval: 10 * time.Millisecond},
		EventLog:    &memoryLog{},
		Lock:        newLeaseLock(t, store, ttl),
		StopTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop(ctx)

	// Run for several TTLs; the renewal loop must keep the lease alive.
	time.Sleep(5 * ttl)

	if !sched.Running() {
		t.Fatal("scheduler must still be running")
	}
	if store.renewCount() < 2 {
		t.Fatalf("renew count = %d, lease would have expired", store.renewCount())
	}
	if ok, _ := newLeaseLock(t, store, ttl).Acquire(ctx); ok {
		t.Fatal("a second instance must not acquire the lease mid-run")
	}

	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if store.currentOwner() != "" {
		t.Fatal("stop must release the lease")
	}
}

func TestSchedulerFencesItselfOnLostLease(t *testing.T) {
	store := &fakeLeaseStore{}
	ctx := context.Background()

	sender := &countingSender{}
	log := &memoryLog{}
	sched, err := NewScheduler(SchedulerParams{
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Builder:     stubBuilder{},
		Dispatcher:  sender,
		Intervals:   fixedIntervals{interval: 5 * time.Millisecond},
		EventLog:    log,
		Lock:        newLeaseLock(t, store, 20*time.Millisecond),
		StopTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop(ctx)

	store.expire()
	time.Sleep(60 * time.Millisecond)

	before := sender.sends.Load()
	time.Sleep(30 * time.Millisecond)
	if after := sender.sends.Load(); after != before {
		t.Fatalf("workers kept sending after the lease was lost: %d -> %d", before, after)
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	found := false
	for _, entry := range log.entries {
		if strings.Contains(entry.Error, "lease lost") {
			found = true
		}
	}
	if !found {
		t.Fatal("losing the lease must be recorded in the event log")
	}
}
