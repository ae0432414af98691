package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(l *Local, start time.Time) *time.Time {
	now := start
	l.now = func() time.Time { return now }
	return &now
}

func TestLocal_BurstThenReject(t *testing.T) {
	l := NewLocal(3)
	fixedClock(l, time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 2; i >= 0; i-- {
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, i, d.Remaining)
	}

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.ResetAfter, time.Duration(0))
	assert.LessOrEqual(t, d.ResetAfter, 20*time.Second)

	other, err := l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "clients have separate buckets")
}

func TestLocal_Refill(t *testing.T) {
	l := NewLocal(60)
	now := fixedClock(l, time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for range 60 {
		d, _ := l.Allow(ctx, "client")
		require.True(t, d.Allowed)
	}
	d, _ := l.Allow(ctx, "client")
	assert.False(t, d.Allowed)

	*now = now.Add(time.Second)
	d, _ = l.Allow(ctx, "client")
	assert.True(t, d.Allowed, "one token per second at 60/min")
}

func TestLocal_Unlimited(t *testing.T) {
	l := NewLocal(0)
	for range 100 {
		d, err := l.Allow(context.Background(), "client")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	assert.Equal(t, 0, l.Len())
}

func TestLocal_SweepsIdleClients(t *testing.T) {
	l := NewLocal(5)
	now := fixedClock(l, time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, _ = l.Allow(ctx, "a")
	_, _ = l.Allow(ctx, "b")
	assert.Equal(t, 2, l.Len())

	*now = now.Add(idleTTL + time.Minute)
	_, _ = l.Allow(ctx, "c")
	assert.Equal(t, 1, l.Len())
}

func TestLocal_Concurrent(t *testing.T) {
	l := NewLocal(50)
	fixedClock(l, time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := l.Allow(context.Background(), "shared")
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func newRedisLimiter(t *testing.T, perMinute int) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "chat", perMinute), mr
}

func TestRedis_FixedWindow(t *testing.T) {
	r, mr := newRedisLimiter(t, 2)
	ctx := context.Background()

	d, err := r.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, time.Minute, d.ResetAfter)

	d, err = r.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = r.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	assert.True(t, mr.Exists("dailyagent:ratelimit:chat:10.0.0.1"))

	mr.FastForward(time.Minute + time.Second)
	d, err = r.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "new window after expiry")
	assert.Equal(t, 1, d.Remaining)
}

func TestZeroLimitAdmitsEverything(t *testing.T) {
	r, mr := newRedisLimiter(t, 0)
	limiters := map[string]Limiter{
		"local": NewLocal(0),
		"redis": r,
	}

	for name, l := range limiters {
		t.Run(name, func(t *testing.T) {
			for range 10 {
				d, err := l.Allow(context.Background(), "client")
				require.NoError(t, err)
				require.True(t, d.Allowed)
			}
		})
	}
	assert.Empty(t, mr.Keys(), "an unlimited route keeps no counters")
}

func TestRedis_RestoresLostExpiry(t *testing.T) {
	r, mr := newRedisLimiter(t, 5)
	require.NoError(t, mr.Set("dailyagent:ratelimit:chat:stuck", "3"))

	d, err := r.Allow(context.Background(), "stuck")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, time.Minute, mr.TTL("dailyagent:ratelimit:chat:stuck"))
}

func TestRedis_ConnectionError(t *testing.T) {
	r, mr := newRedisLimiter(t, 5)
	mr.Close()

	_, err := r.Allow(context.Background(), "client")
	assert.Error(t, err)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Dial(context.Background(), mr.Addr())
	require.NoError(t, err)
	_ = client.Close()

	_, err = Dial(context.Background(), "")
	assert.Error(t, err)
}
