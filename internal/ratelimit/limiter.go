package ratelimit

import (
	"context"
	"time"
)

// Backend performs one atomic token bucket check. It returns whether the
// request was admitted and the tokens left in the bucket.
type Backend interface {
	CheckRateLimit(ctx context.Context, key string, maxTokens int, refillRate float64, requested int) (bool, int, error)
}

// Config sizes the token bucket shared by every limited route.
type Config struct {
	RequestsPerSecond float64
	BurstSize         int
}

// Limiter applies one token bucket per caller key.
type Limiter struct {
	backend Backend
	cfg     Config
}

// New creates a limiter. Non-positive settings fall back to one request per
// second with a burst of five.
func New(backend Backend, cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 5
	}
	return &Limiter{backend: backend, cfg: cfg}
}

// Result contains the result of a rate limit check
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Allow consumes one token from key's bucket.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	allowed, remaining, err := l.backend.CheckRateLimit(ctx, key, l.cfg.BurstSize, l.cfg.RequestsPerSecond, 1)
	if err != nil {
		return Result{}, err
	}

	// Time until the bucket is full again
	missing := float64(l.cfg.BurstSize - remaining)
	resetAt := time.Now().Add(time.Duration(missing / l.cfg.RequestsPerSecond * float64(time.Second)))

	return Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// KeyForIP returns the bucket key for a client address.
func KeyForIP(ip string) string {
	return "ip:" + ip
}
