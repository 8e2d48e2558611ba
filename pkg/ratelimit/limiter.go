package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config tunes a token-bucket limiter.
type Config struct {
	// Capacity is the maximum number of tokens a bucket holds.
	Capacity int
	// RefillPerSec is the steady-state refill rate in tokens per second.
	RefillPerSec float64
	// IdleEviction is how long an untouched bucket survives before the
	// cleanup loop drops it.
	IdleEviction time.Duration
	Logger       *zap.Logger
}

// Limiter admits at most Capacity requests per key in a burst, refilling
// lazily at RefillPerSec. Buckets carry their own mutex so concurrent
// requests for different keys never contend on a shared lock beyond the
// map lookup.
type Limiter struct {
	capacity float64
	refill   float64
	idle     time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stop     chan struct{}
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// New constructs a limiter. Zero or negative config values fall back to
// permissive defaults.
func New(cfg Config) *Limiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 60
	}
	if cfg.RefillPerSec <= 0 {
		cfg.RefillPerSec = 1
	}
	if cfg.IdleEviction <= 0 {
		cfg.IdleEviction = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Limiter{
		capacity: float64(cfg.Capacity),
		refill:   cfg.RefillPerSec,
		idle:     cfg.IdleEviction,
		logger:   cfg.Logger,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
		stop:     make(chan struct{}),
	}
}

// Allow attempts to consume one token for key. It reports whether the
// request is admitted and, when it is not, how long until at least one
// token accrues. Refill-and-consume is a single step under the bucket lock.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	b := l.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed.Seconds()*l.refill)
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	deficit := 1 - b.tokens
	retryAfter := time.Duration(deficit / l.refill * float64(time.Second))
	return false, retryAfter
}

func (l *Limiter) bucket(key string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}
	b = &bucket{tokens: l.capacity, lastRefill: l.now()}
	l.buckets[key] = b
	return b
}

// Len returns the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// evictIdle drops buckets untouched for longer than the idle window.
func (l *Limiter) evictIdle() int {
	cutoff := l.now().Add(-l.idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, b := range l.buckets {
		b.mu.Lock()
		stale := b.lastRefill.Before(cutoff)
		b.mu.Unlock()
		if stale {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}

// StartCleanup runs idle-bucket eviction on the idle interval until the
// context is cancelled or Stop is called.
func (l *Limiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(l.idle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			case <-ticker.C:
				if n := l.evictIdle(); n > 0 {
					l.logger.Debug("evicted idle rate-limit buckets", zap.Int("count", n))
				}
			}
		}
	}()
}

// Stop terminates the cleanup loop. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
