package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/************ fake redis ************/
type fakeCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	ttls    map[string]time.Duration
	incrErr error
}

var _ redisCounter = (*fakeCounter)(nil)

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := goredis.NewIntCmd(ctx, "incr", key)
	if f.incrErr != nil {
		cmd.SetErr(f.incrErr)
		return cmd
	}
	f.counts[key]++
	cmd.SetVal(f.counts[key])
	return cmd
}

func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = expiration
	cmd := goredis.NewBoolCmd(ctx, "expire", key)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeCounter) TTL(ctx context.Context, key string) *goredis.DurationCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := goredis.NewDurationCmd(ctx, time.Second, "ttl", key)
	ttl, ok := f.ttls[key]
	if !ok {
		ttl = -1
	}
	cmd.SetVal(ttl)
	return cmd
}

// expireAll simulates the window elapsing.
func (f *fakeCounter) expireAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = map[string]int64{}
	f.ttls = map[string]time.Duration{}
}

func TestRedisLimiter_AllowsUpToLimitPerWindow(t *testing.T) {
	fc := newFakeCounter()
	l := NewRedisWithCounter(fc, "test:", 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 3-i, d.Remaining)
	}
	assert.Equal(t, time.Minute, fc.ttls["test:user-1"])

	d, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	other, err := l.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "quotas are per identifier")

	fc.expireAll()
	d, err = l.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_RestoresMissingExpiry(t *testing.T) {
	fc := newFakeCounter()
	fc.counts["ratelimit:u"] = 5
	l := NewRedisWithCounter(fc, "", 1, 30*time.Second)

	d, err := l.Allow(context.Background(), "u")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)
	assert.Equal(t, 30*time.Second, fc.ttls["ratelimit:u"])
}

func TestRedisLimiter_StoreErrorIsReturned(t *testing.T) {
	fc := newFakeCounter()
	fc.incrErr = errors.New("connection refused")
	l := NewRedisWithCounter(fc, "", 1, time.Minute)

	_, err := l.Allow(context.Background(), "u")
	assert.ErrorContains(t, err, "connection refused")
}

func TestRedisLimiter_ConcurrentCallersShareQuota(t *testing.T) {
	fc := newFakeCounter()
	l := NewRedisWithCounter(fc, "", 5, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(context.Background(), "same")
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, allowed)
}
