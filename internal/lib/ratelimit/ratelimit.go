// Package ratelimit держит отдельный token bucket на каждый ключ:
// адрес клиента, нормализованный телефон и т.п.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	idleTTL  = 10 * time.Minute
	pruneLen = 10000
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter ограничивает частоту событий по ключу.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// New создаёт лимитер: limit событий в секунду с запасом burst на ключ.
func New(limit rate.Limit, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

// Every лимитер на одно событие за interval с запасом burst.
func Every(interval time.Duration, burst int) *Limiter {
	return New(rate.Every(interval), burst)
}

// Allow сообщает, можно ли принять ещё одно событие для key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.buckets) >= pruneLen {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > idleTTL {
				delete(l.buckets, k)
			}
		}
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}
