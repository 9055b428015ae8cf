package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter bounds request rates per caller identity. Injected into the
// request-handling layer so it can be swapped for a distributed limiter.
type Limiter interface {
	Allow(callerID string) bool
}

// TokenBucketLimiter keeps one in-process token bucket per caller.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewTokenBucketLimiter allows perMinute sustained requests per caller with
// the given burst capacity.
func NewTokenBucketLimiter(perMinute, burst int) *TokenBucketLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &TokenBucketLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
	}
}

func (l *TokenBucketLimiter) Allow(callerID string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[callerID]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[callerID] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}
