package ratelimit

import (
    "sync"
    "time"
)

type bucket struct {
    tokens float64
    last   time.Time
}

// Limiter is a per-key token bucket. Every key gets the same capacity and
// refill rate.
type Limiter struct {
    mu         sync.Mutex
    m          map[string]*bucket
    capacity   float64
    refillRate float64 // tokens per second
    now        func() time.Time
}

// New allows `requests` per `window` per key, with bursts up to `requests`.
func New(requests int, window time.Duration) *Limiter {
    if requests <= 0 {
        requests = 1
    }
    if window <= 0 {
        window = time.Minute
    }
    return &Limiter{
        m:          make(map[string]*bucket),
        capacity:   float64(requests),
        refillRate: float64(requests) / window.Seconds(),
        now:        time.Now,
    }
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
    now := l.now()
    l.mu.Lock()
    defer l.mu.Unlock()

    b, ok := l.m[key]
    if !ok {
        b = &bucket{tokens: l.capacity, last: now}
        l.m[key] = b
    }
    if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
        b.tokens = min(l.capacity, b.tokens+elapsed*l.refillRate)
        b.last = now
    }
    if b.tokens < 1 {
        return false
    }
    b.tokens--
    return true
}

// Prune drops buckets idle for longer than idle; they would be full anyway.
func (l *Limiter) Prune(idle time.Duration) int {
    cutoff := l.now().Add(-idle)
    l.mu.Lock()
    defer l.mu.Unlock()
    n := 0
    for k, b := range l.m {
        if b.last.Before(cutoff) {
            delete(l.m, k)
            n++
        }
    }
    return n
}
