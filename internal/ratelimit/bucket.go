// Package ratelimit provides the per-channel token bucket that caps
// outbound send rates.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const pollInterval = 20 * time.Millisecond

// Bucket is a mutex-guarded token bucket. It is shared across all workers
// targeting one channel and lives only for the process lifetime.
type Bucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64
	lastRefill time.Time
	now        func() time.Time
}

// NewBucket builds a bucket holding at most capacity tokens, refilled at
// refillRate tokens per second. A refillRate <= 0 disables limiting entirely
// (every acquisition succeeds), which is how rate limiting is turned off
// administratively without starving callers.
func NewBucket(capacity, refillRate float64) *Bucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// TryAcquire reports whether a token was available right now. Non-blocking.
func (b *Bucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refillRate <= 0 {
		return true
	}

	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait polls TryAcquire until a token frees up or ctx is done. This is the
// only place callers deliberately block; there is no fair queueing beyond
// retry-on-the-caller.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		if b.TryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Reconfigure swaps the capacity and refill rate in place, keeping the
// current token balance capped at the new capacity.
func (b *Bucket) Reconfigure(capacity, refillRate float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if capacity <= 0 {
		capacity = 1
	}
	b.capacity = capacity
	b.refillRate = refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}
