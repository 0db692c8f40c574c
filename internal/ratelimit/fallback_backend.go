package ratelimit

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oriys/folio/internal/logging"
)

// FallbackBackend prefers a shared primary backend and answers from local
// buckets whenever the primary is unusable. The cache store's availability
// decides when the primary is worth asking, so an outage costs no timeouts.
type FallbackBackend struct {
	primary   Backend
	local     *LocalTokenBucketBackend
	available func() bool
	degraded  atomic.Bool
}

// NewFallbackBackend creates a backend that uses primary while available
// reports true. A nil available always tries the primary first.
func NewFallbackBackend(primary Backend, available func() bool) *FallbackBackend {
	return &FallbackBackend{
		primary:   primary,
		local:     NewLocalTokenBucketBackend(),
		available: available,
	}
}

func (f *FallbackBackend) CheckRateLimit(ctx context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error) {
	if f.available != nil && !f.available() {
		f.setDegraded(true, nil)
		return f.local.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	}

	allowed, remaining, err := f.primary.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	if err != nil {
		f.setDegraded(true, err)
		return f.local.CheckRateLimit(ctx, key, maxTokens, refillRate, requested)
	}
	f.setDegraded(false, nil)
	return allowed, remaining, nil
}

// setDegraded logs transitions only.
func (f *FallbackBackend) setDegraded(degraded bool, cause error) {
	if !f.degraded.CompareAndSwap(!degraded, degraded) {
		return
	}
	if degraded {
		logging.Op().Warn("admin rate limiting degraded to local buckets", "error", cause)
		return
	}
	logging.Op().Info("admin rate limiting back on shared buckets")
}

// Degraded reports whether the last check was answered locally.
func (f *FallbackBackend) Degraded() bool {
	return f.degraded.Load()
}

// maxLocalBuckets bounds the local bucket table; full buckets are dropped
// first since recreating them is equivalent.
const maxLocalBuckets = 10000

// LocalTokenBucketBackend implements Backend with in-process token buckets.
type LocalTokenBucketBackend struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	now     func() time.Time
}

type localBucket struct {
	tokens     float64
	max        float64
	rate       float64
	lastRefill time.Time
}

func (b *localBucket) refill(now time.Time) {
	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.max, b.tokens+elapsed*b.rate)
		b.lastRefill = now
	}
}

// NewLocalTokenBucketBackend creates a local in-memory token bucket backend.
func NewLocalTokenBucketBackend() *LocalTokenBucketBackend {
	return &LocalTokenBucketBackend{
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}
}

func (l *LocalTokenBucketBackend) CheckRateLimit(_ context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxLocalBuckets {
			l.sweep(now)
		}
		b = &localBucket{tokens: float64(maxTokens), lastRefill: now}
		l.buckets[key] = b
	}
	b.max = float64(maxTokens)
	b.rate = refillRate
	b.refill(now)

	if b.tokens >= float64(requested) {
		b.tokens -= float64(requested)
		return true, int(b.tokens), nil
	}
	return false, int(b.tokens), nil
}

// sweep drops every bucket that has refilled completely.
func (l *LocalTokenBucketBackend) sweep(now time.Time) {
	for key, b := range l.buckets {
		b.refill(now)
		if b.tokens >= b.max {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of live buckets.
func (l *LocalTokenBucketBackend) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
