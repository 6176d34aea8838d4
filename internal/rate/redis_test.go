package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisLimiter(client, limit, window, "test:rl:"), mr
}

func TestRedisLimiterBlocksOverLimit(t *testing.T) {
	limiter, _ := newTestRedisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "1.2.3.4", time.Now())
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "1.2.3.4", time.Now())
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatalf("third attempt should be blocked")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", retryAfter)
	}
}

func TestRedisLimiterWindowExpires(t *testing.T) {
	limiter, mr := newTestRedisLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if allowed, _, _ := limiter.Allow(ctx, "a", time.Now()); !allowed {
		t.Fatalf("first attempt should be allowed")
	}
	if allowed, _, _ := limiter.Allow(ctx, "a", time.Now()); allowed {
		t.Fatalf("second attempt should be blocked")
	}

	mr.FastForward(61 * time.Second)

	if allowed, _, _ := limiter.Allow(ctx, "a", time.Now()); !allowed {
		t.Fatalf("attempt after expiry should be allowed")
	}
}
