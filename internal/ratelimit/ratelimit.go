// Package ratelimit provides the per-client request budgets enforced by the
// HTTP API: an in-process token bucket and a Redis fixed window shared by
// several replicas.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of one Allow call, carrying what the API reports
// in its X-RateLimit-* headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAfter is how long until another request will be admitted.
	ResetAfter time.Duration
}

// Limiter admits or rejects a request from a client key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// unlimited is the decision of a limiter configured with no budget.
var unlimited = Decision{Allowed: true, Limit: math.MaxInt, Remaining: math.MaxInt}

// Idle client buckets are dropped after this long
const idleTTL = 10 * time.Minute

// Local is a per-key token bucket refilling perMinute tokens per minute
// with a burst of perMinute.
type Local struct {
	perMinute int
	now       func() time.Time

	mu       sync.Mutex
	limiters map[string]*bucket
	sweptAt  time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocal creates an in-process limiter. perMinute <= 0 admits everything.
func NewLocal(perMinute int) *Local {
	return &Local{
		perMinute: perMinute,
		now:       time.Now,
		limiters:  make(map[string]*bucket),
	}
}

// Allow consumes one token from key's bucket.
func (l *Local) Allow(_ context.Context, key string) (Decision, error) {
	if l.perMinute <= 0 {
		return unlimited, nil
	}

	now := l.now()
	lim := l.limiterFor(key, now)

	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	d := Decision{
		Allowed:   allowed,
		Limit:     l.perMinute,
		Remaining: max(int(math.Floor(tokens)), 0),
	}
	if tokens < 1 {
		perToken := time.Minute / time.Duration(l.perMinute)
		d.ResetAfter = time.Duration((1 - tokens) * float64(perToken))
	}
	return d, nil
}

func (l *Local) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.sweptAt) > idleTTL {
		for k, b := range l.limiters {
			if now.Sub(b.lastSeen) > idleTTL {
				delete(l.limiters, k)
			}
		}
		l.sweptAt = now
	}

	b, ok := l.limiters[key]
	if !ok {
		perSecond := rate.Limit(float64(l.perMinute) / 60)
		b = &bucket{limiter: rate.NewLimiter(perSecond, l.perMinute)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Len returns the number of tracked client buckets.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
